package gcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/utils"
)

// TranscriptResult carries the transcript plus delivery metrics derived from
// word timings. The metrics feed the feedback-scoring prompt.
type TranscriptResult struct {
	Transcript      string  `json:"transcript"`
	Confidence      float64 `json:"confidence"`
	DurationSec     float64 `json:"duration_sec"`
	WordCount       int     `json:"word_count"`
	FillerWordCount int     `json:"filler_word_count"`
	SpeechRateWPM   float64 `json:"speech_rate_wpm"`
	PauseCount      int     `json:"pause_count"`
	LongestPauseSec float64 `json:"longest_pause_sec"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (*TranscriptResult, error)
	Close() error
}

type transcriber struct {
	log        *logger.Logger
	client     *speech.Client
	maxRetries int
}

func NewTranscriber(ctx context.Context, log *logger.Logger) (Transcriber, error) {
	serviceLog := log.With("service", "Transcriber")

	creds := strings.TrimSpace(utils.GetEnv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "", log))

	var c *speech.Client
	var err error
	if creds != "" {
		c, err = speech.NewClient(ctx, option.WithCredentialsFile(creds))
	} else {
		c, err = speech.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &transcriber{
		log:        serviceLog,
		client:     c,
		maxRetries: 3,
	}, nil
}

func (t *transcriber) Close() error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Close()
}

func (t *transcriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (*TranscriptResult, error) {
	// answers are short clips; keep a strict timeout
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               "en-US",
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
			Encoding:                   inferEncoding(mimeType),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	resp, err := t.retryLR(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := t.client.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize: %w", err)
	}

	return parseRecognizeResponse(resp), nil
}

func inferEncoding(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(m))

	switch {
	case strings.Contains(m, "wav") || ext == ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac") || ext == ".flac":
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mp3") || ext == ".mp3":
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "ogg") || strings.Contains(m, "opus") || strings.Contains(m, "webm"):
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

var fillerWords = map[string]bool{
	"um": true, "uh": true, "er": true, "ah": true, "hmm": true,
	"like": true, "basically": true, "actually": true, "literally": true,
}

// pauses shorter than this are normal phrasing, not hesitation
const pauseThresholdSec = 1.5

func parseRecognizeResponse(resp *speechpb.LongRunningRecognizeResponse) *TranscriptResult {
	out := &TranscriptResult{}
	if resp == nil || len(resp.Results) == 0 {
		return out
	}

	var full strings.Builder
	var confSum float64
	var confN int
	var firstStart, lastEnd float64
	var prevEnd float64
	haveWords := false

	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		if strings.TrimSpace(alt.Transcript) == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(strings.TrimSpace(alt.Transcript))

		if alt.Confidence > 0 {
			confSum += float64(alt.Confidence)
			confN++
		}

		for _, w := range alt.Words {
			if w == nil {
				continue
			}
			ws := durToSec(w.StartTime)
			we := durToSec(w.EndTime)
			if !haveWords {
				firstStart = ws
				haveWords = true
			} else {
				gap := ws - prevEnd
				if gap >= pauseThresholdSec {
					out.PauseCount++
					if gap > out.LongestPauseSec {
						out.LongestPauseSec = gap
					}
				}
			}
			prevEnd = we
			if we > lastEnd {
				lastEnd = we
			}
			out.WordCount++
			if fillerWords[normalizeWord(w.Word)] {
				out.FillerWordCount++
			}
		}
	}

	out.Transcript = strings.TrimSpace(full.String())
	if confN > 0 {
		out.Confidence = confSum / float64(confN)
	}
	if haveWords && lastEnd > firstStart {
		out.DurationSec = lastEnd - firstStart
		out.SpeechRateWPM = float64(out.WordCount) / (out.DurationSec / 60.0)
	}
	return out
}

func normalizeWord(w string) string {
	return strings.Trim(strings.ToLower(w), ".,!?;:'\"")
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}

func (t *transcriber) retryLR(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == t.maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}
