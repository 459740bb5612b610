package render

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/decidepage/core/internal/models"
	"github.com/decidepage/core/internal/modules/intelligence"
)

// Streamer is the streaming LLM call the renderer depends on. A non-nil error
// from onToken must abort the stream.
type Streamer interface {
	Stream(ctx context.Context, systemPrompt, prompt string, onToken func(string) error) (string, error)
}

// Service renders a cached intelligence payload into a decision page. Chunks
// arrive through onChunk in document order; the stream is finite and a failed
// run must be re-invoked from the start.
type Service struct {
	client Streamer
	logger *zap.Logger
}

func NewService(client Streamer, logger *zap.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Render streams the page HTML for a payload. onChunk may be nil for one-shot
// rendering. Returns the full accumulated HTML.
func (s *Service) Render(ctx context.Context, ownerType models.OwnerType, payload intelligence.Payload, opts Options, onChunk func(string) error) (string, error) {
	normalized, err := opts.Normalize(ownerType)
	if err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("intelligence payload is empty")
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	systemPrompt := buildSystemPrompt(ownerType, normalized)
	userPrompt := buildUserPrompt(ownerType, string(payloadJSON))

	html, err := s.client.Stream(ctx, systemPrompt, userPrompt, onChunk)
	if err != nil {
		return "", err
	}

	if s.logger != nil {
		s.logger.Debug("render complete",
			zap.String("owner_type", string(ownerType)),
			zap.String("style", normalized.Style),
			zap.String("language", normalized.Language),
			zap.Int("html_bytes", len(html)),
		)
	}
	return html, nil
}
