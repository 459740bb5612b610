package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/decidepage/core/internal/models"
	"github.com/decidepage/core/internal/modules/intelligence"
	"github.com/decidepage/core/internal/modules/llm"
)

// ErrEmptyInput is returned when there is no raw text to extract from.
var ErrEmptyInput = errors.New("raw text is empty")

// Completer is the blocking LLM call the extractor depends on.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Service turns raw text into a structured intelligence payload. It never
// writes to the store; committing the result is the pipeline's job.
type Service struct {
	client        Completer
	maxInputChars int
	logger        *zap.Logger
}

func NewService(client Completer, maxInputChars int, logger *zap.Logger) *Service {
	if maxInputChars <= 0 {
		maxInputChars = 60000
	}
	return &Service{client: client, maxInputChars: maxInputChars, logger: logger}
}

// Extract runs the owner-type-specific extraction prompt over rawText and
// returns the parsed payload with version metadata attached.
func (s *Service) Extract(ctx context.Context, ownerType models.OwnerType, rawText string) (intelligence.Payload, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil, ErrEmptyInput
	}
	text = llm.TruncateRunes(text, s.maxInputChars)

	systemPrompt, version, overviewKey := promptFor(ownerType)
	raw, err := s.client.Complete(ctx, systemPrompt, text)
	if err != nil {
		return nil, fmt.Errorf("extraction backend: %w", err)
	}

	var payload intelligence.Payload
	if err := llm.UnmarshalModelJSON(raw, &payload); err != nil {
		return nil, fmt.Errorf("extraction output: %w", err)
	}
	if _, ok := payload[overviewKey]; !ok {
		return nil, fmt.Errorf("extraction output: missing %s", overviewKey)
	}

	payload["_meta"] = map[string]interface{}{
		"extractor_version": version,
	}

	if s.logger != nil {
		s.logger.Debug("extraction complete",
			zap.String("owner_type", string(ownerType)),
			zap.Int("input_chars", len(text)),
		)
	}
	return payload, nil
}

func promptFor(ownerType models.OwnerType) (systemPrompt, version, overviewKey string) {
	if ownerType == models.OwnerMeeting {
		return meetingSystemPrompt, MeetingPromptVersion, "meeting_overview"
	}
	return documentSystemPrompt, DocumentPromptVersion, "document_overview"
}
