package services

import (
	"context"
	"fmt"

	"github.com/mockmate/mockmate-backend/internal/clients/gemini"
	"github.com/mockmate/mockmate-backend/internal/types"
)

// Conversation wraps a TurnState and the generative backend for one
// request's lifetime. Resuming is a pure function of the serialized state:
// no live chat object ever crosses a request boundary.
type Conversation struct {
	ai    gemini.Client
	state *types.TurnState
}

func ResumeConversation(state *types.TurnState, ai gemini.Client) (*Conversation, error) {
	if ai == nil {
		return nil, fmt.Errorf("%w: generative backend unavailable", ErrUpstream)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return &Conversation{ai: ai, state: state}, nil
}

// SendMessage appends the outgoing user message and the assistant reply to
// the in-memory history, so State() reflects the full transcript including
// this exchange. When jsonOutput is set the reply is expected to be JSON;
// validating it against a schema is the caller's job.
func (c *Conversation) SendMessage(ctx context.Context, text string, jsonOutput bool) (string, error) {
	reply, err := c.ai.Chat(ctx, c.state.SystemInstruction, c.state.Messages, text, jsonOutput)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	c.state.Append(types.TurnRoleUser, text)
	c.state.Append(types.TurnRoleAssistant, reply)
	return reply, nil
}

func (c *Conversation) History() []types.TurnMessage {
	return c.state.Messages
}

func (c *Conversation) State() *types.TurnState {
	return c.state
}
