package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/decidepage/core/internal/models"
)

// ErrEmptyQuery is returned when there is no question to answer.
var ErrEmptyQuery = errors.New("query is empty")

// InsufficientContextAnswer is returned without calling the model when no
// grounding context exists for the question.
const InsufficientContextAnswer = "There is no relevant context available to answer this question."

// Completer is the blocking LLM call the engine depends on.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// IntelligenceGetter loads the cached intelligence the answer is grounded on.
type IntelligenceGetter interface {
	Get(ctx context.Context, ownerType models.OwnerType, ownerID string) (*models.IntelligenceRecordModel, error)
}

// Engine answers questions strictly from an owner's cached intelligence. It
// never triggers extraction; a missing record surfaces as the store's
// not-found error.
type Engine struct {
	store   IntelligenceGetter
	client  Completer
	timeout time.Duration
	logger  *zap.Logger
}

func NewEngine(store IntelligenceGetter, client Completer, timeout time.Duration, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, client: client, timeout: timeout, logger: logger}
}

// Request is one grounded question.
type Request struct {
	OwnerType models.OwnerType
	OwnerID   string
	Query     string `json:"query"`
	Target    string `json:"target"`
	Language  string `json:"language"`
}

// Answer carries the model's reply and the contexts it was grounded on.
type Answer struct {
	Answer   string    `json:"answer"`
	Contexts []Context `json:"contexts"`
}

const askSystemPromptFormat = `You are a decision analysis assistant.
Answer the user's question using ONLY the provided contexts.
Cite the context_id of every context you rely on.
When a decision is involved, explain the risk and whether it is irreversible.
If the contexts are insufficient to answer, say so explicitly instead of guessing.
Respond in %s.`

// Ask retrieves the owner's intelligence, selects the best-matching contexts
// for the question and asks the model for a grounded answer.
func (e *Engine) Ask(ctx context.Context, req Request) (*Answer, error) {
	question := strings.TrimSpace(req.Query)
	if question == "" {
		return nil, ErrEmptyQuery
	}

	rec, err := e.store.Get(ctx, req.OwnerType, req.OwnerID)
	if err != nil {
		return nil, err
	}

	contexts := selectTop(buildContexts(req.OwnerType, req.OwnerID, rec.Current, req.Target), question)
	if len(contexts) == 0 {
		return &Answer{Answer: InsufficientContextAnswer, Contexts: []Context{}}, nil
	}

	contextJSON, err := json.Marshal(contexts)
	if err != nil {
		return nil, fmt.Errorf("marshal contexts: %w", err)
	}

	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = "en"
	}

	cctx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf("Question:\n%s\n\nContexts:\n%s", question, contextJSON)
	answer, err := e.client.Complete(cctx, fmt.Sprintf(askSystemPromptFormat, languageName(language)), prompt)
	if err != nil {
		return nil, fmt.Errorf("query backend: %w", err)
	}

	e.logger.Debug("query answered",
		zap.String("owner_type", string(req.OwnerType)),
		zap.String("owner_id", req.OwnerID),
		zap.Int("contexts", len(contexts)),
	)
	return &Answer{Answer: strings.TrimSpace(answer), Contexts: contexts}, nil
}

func languageName(code string) string {
	if code == "zh" {
		return "Chinese"
	}
	return "English"
}
