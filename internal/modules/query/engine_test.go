package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decidepage/core/internal/models"
	"github.com/decidepage/core/internal/modules/intelligence"
)

type fakeGetter struct {
	rec *models.IntelligenceRecordModel
	err error
}

func (f *fakeGetter) Get(context.Context, models.OwnerType, string) (*models.IntelligenceRecordModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

type fakeCompleter struct {
	answer     string
	err        error
	calls      int
	lastSys    string
	lastPrompt string
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, prompt string) (string, error) {
	f.calls++
	f.lastSys = systemPrompt
	f.lastPrompt = prompt
	return f.answer, f.err
}

func meetingRecord() *models.IntelligenceRecordModel {
	return &models.IntelligenceRecordModel{
		Current: intelligence.Payload{
			"participants": []interface{}{
				map[string]interface{}{
					"name": "Alice", "role": "CTO",
					"risk_bias": "conservative about database migrations",
				},
				map[string]interface{}{
					"name": "Bob", "role": "PM",
					"risk_bias": "pushes for aggressive launch timelines",
				},
			},
		},
		Version: 1,
	}
}

func TestAskNotFoundPassthrough(t *testing.T) {
	e := NewEngine(&fakeGetter{err: intelligence.ErrNotFound}, &fakeCompleter{}, time.Second, nil)
	_, err := e.Ask(context.Background(), Request{OwnerType: models.OwnerDocument, OwnerID: "d1", Query: "what?"})
	assert.ErrorIs(t, err, intelligence.ErrNotFound)
}

func TestAskEmptyQuery(t *testing.T) {
	e := NewEngine(&fakeGetter{}, &fakeCompleter{}, time.Second, nil)
	_, err := e.Ask(context.Background(), Request{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestAskDocumentContext(t *testing.T) {
	getter := &fakeGetter{rec: &models.IntelligenceRecordModel{
		Current: intelligence.Payload{
			"key_facts":                   []interface{}{"migration takes six weeks"},
			"uncertainties":               []interface{}{"vendor pricing unconfirmed"},
			"core_results":                []interface{}{"latency improved 40 percent"},
			"claims_requiring_validation": []interface{}{"zero downtime cutover"},
		},
	}}
	client := &fakeCompleter{answer: "Grounded answer [doc-1]."}
	e := NewEngine(getter, client, time.Second, nil)

	ans, err := e.Ask(context.Background(), Request{
		OwnerType: models.OwnerDocument, OwnerID: "doc-1",
		Query: "how long does the migration take?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Grounded answer [doc-1].", ans.Answer)
	require.Len(t, ans.Contexts, 1)
	assert.Equal(t, "doc-1", ans.Contexts[0].ID)
	assert.Greater(t, ans.Contexts[0].Score, 0.0)
	assert.Contains(t, client.lastPrompt, "zero downtime cutover")
	assert.Contains(t, client.lastSys, "Respond in English.")
}

func TestAskMeetingTargetNarrowing(t *testing.T) {
	client := &fakeCompleter{answer: "ok"}
	e := NewEngine(&fakeGetter{rec: meetingRecord()}, client, time.Second, nil)

	ans, err := e.Ask(context.Background(), Request{
		OwnerType: models.OwnerMeeting, OwnerID: "m1",
		Query: "what would alice say about the migration?", Target: "alice",
	})
	require.NoError(t, err)
	require.Len(t, ans.Contexts, 1)
	assert.Equal(t, "Alice", ans.Contexts[0].ID)
}

func TestAskMeetingTargetAll(t *testing.T) {
	e := NewEngine(&fakeGetter{rec: meetingRecord()}, &fakeCompleter{answer: "ok"}, time.Second, nil)

	ans, err := e.Ask(context.Background(), Request{
		OwnerType: models.OwnerMeeting, OwnerID: "m1",
		Query: "who disagrees about timelines?", Target: TargetAll,
	})
	require.NoError(t, err)
	assert.Len(t, ans.Contexts, 2)
}

func TestAskScoringPrefersOverlap(t *testing.T) {
	e := NewEngine(&fakeGetter{rec: meetingRecord()}, &fakeCompleter{answer: "ok"}, time.Second, nil)

	ans, err := e.Ask(context.Background(), Request{
		OwnerType: models.OwnerMeeting, OwnerID: "m1",
		Query: "database migrations risk",
	})
	require.NoError(t, err)
	require.Len(t, ans.Contexts, 2)
	assert.Equal(t, "Alice", ans.Contexts[0].ID, "persona mentioning migrations scores highest")
	assert.Greater(t, ans.Contexts[0].Score, ans.Contexts[1].Score)
}

func TestAskNoContextsShortCircuits(t *testing.T) {
	client := &fakeCompleter{}
	e := NewEngine(&fakeGetter{rec: meetingRecord()}, client, time.Second, nil)

	ans, err := e.Ask(context.Background(), Request{
		OwnerType: models.OwnerMeeting, OwnerID: "m1",
		Query: "anything", Target: "nobody-here",
	})
	require.NoError(t, err)
	assert.Equal(t, InsufficientContextAnswer, ans.Answer)
	assert.Empty(t, ans.Contexts)
	assert.Zero(t, client.calls, "no model call without grounding context")
}

func TestAskChineseLanguage(t *testing.T) {
	client := &fakeCompleter{answer: "ok"}
	e := NewEngine(&fakeGetter{rec: meetingRecord()}, client, time.Second, nil)

	_, err := e.Ask(context.Background(), Request{
		OwnerType: models.OwnerMeeting, OwnerID: "m1",
		Query: "风险", Language: "zh",
	})
	require.NoError(t, err)
	assert.Contains(t, client.lastSys, "Respond in Chinese.")
}

func TestTokenizeMixedScripts(t *testing.T) {
	tokens := tokenize("Database 迁移 risk-2025")
	for _, want := range []string{"database", "迁移", "risk", "2025"} {
		_, ok := tokens[want]
		assert.True(t, ok, "missing token %q", want)
	}
}
