package types

import (
	"encoding/json"
	"fmt"
)

const TurnStateVersion = 1

const (
	TurnRoleSystem    = "system"
	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
)

type TurnMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// TurnState is the serialized conversational history for one session's
// dialogue with the generative backend: plain versioned data, never a live
// chat object. It is overwritten in full after every exchange, both in the
// redis turn store and in session.turn_context.
type TurnState struct {
	Version           int           `json:"version"`
	SystemInstruction string        `json:"system_instruction,omitempty"`
	Messages          []TurnMessage `json:"messages"`
}

func NewTurnState(systemInstruction string) *TurnState {
	return &TurnState{
		Version:           TurnStateVersion,
		SystemInstruction: systemInstruction,
		Messages:          []TurnMessage{},
	}
}

func (s *TurnState) Append(role, text string) {
	s.Messages = append(s.Messages, TurnMessage{Role: role, Text: text})
}

// Validate rejects states that cannot resume a conversation.
func (s *TurnState) Validate() error {
	if s == nil {
		return fmt.Errorf("turn state is nil")
	}
	if s.Version != TurnStateVersion {
		return fmt.Errorf("unsupported turn state version %d", s.Version)
	}
	for i, m := range s.Messages {
		switch m.Role {
		case TurnRoleSystem, TurnRoleUser, TurnRoleAssistant:
		default:
			return fmt.Errorf("message %d has unknown role %q", i, m.Role)
		}
	}
	return nil
}

func (s *TurnState) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func UnmarshalTurnState(raw []byte) (*TurnState, error) {
	var s TurnState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode turn state: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
