package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decidepage/core/internal/models"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
	lastSys  string
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, _ string) (string, error) {
	f.calls++
	f.lastSys = systemPrompt
	return f.response, f.err
}

func TestExtractDocument(t *testing.T) {
	fake := &fakeCompleter{response: `{"document_overview": {"title": "Q3 budget"}, "key_facts": ["revenue up 12%"]}`}
	svc := NewService(fake, 0, nil)

	payload, err := svc.Extract(context.Background(), models.OwnerDocument, "Quarterly budget review")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
	assert.Contains(t, fake.lastSys, "Document Intelligence Extractor")

	meta, ok := payload["_meta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, DocumentPromptVersion, meta["extractor_version"])
}

func TestExtractMeetingUsesMeetingPrompt(t *testing.T) {
	fake := &fakeCompleter{response: `{"meeting_overview": {"title": "standup"}, "participants": []}`}
	svc := NewService(fake, 0, nil)

	payload, err := svc.Extract(context.Background(), models.OwnerMeeting, "Alice: we should ship on Friday")
	require.NoError(t, err)
	assert.Contains(t, fake.lastSys, "Meeting Intelligence Extractor")

	meta := payload["_meta"].(map[string]interface{})
	assert.Equal(t, MeetingPromptVersion, meta["extractor_version"])
}

func TestExtractEmptyInput(t *testing.T) {
	fake := &fakeCompleter{}
	svc := NewService(fake, 0, nil)

	_, err := svc.Extract(context.Background(), models.OwnerDocument, "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, 0, fake.calls, "backend must not be called for empty input")
}

func TestExtractFencedJSON(t *testing.T) {
	fake := &fakeCompleter{response: "```json\n{\"document_overview\": {\"title\": \"x\"}}\n```"}
	svc := NewService(fake, 0, nil)

	payload, err := svc.Extract(context.Background(), models.OwnerDocument, "some text")
	require.NoError(t, err)
	assert.Contains(t, payload, "document_overview")
}

func TestExtractMalformedOutput(t *testing.T) {
	fake := &fakeCompleter{response: "I could not produce JSON, sorry"}
	svc := NewService(fake, 0, nil)

	_, err := svc.Extract(context.Background(), models.OwnerDocument, "some text")
	assert.Error(t, err)
}

func TestExtractWrongSchema(t *testing.T) {
	// Valid JSON but the wrong shape for the owner type.
	fake := &fakeCompleter{response: `{"meeting_overview": {"title": "x"}}`}
	svc := NewService(fake, 0, nil)

	_, err := svc.Extract(context.Background(), models.OwnerDocument, "some text")
	assert.Error(t, err)
}

func TestExtractBackendError(t *testing.T) {
	backendErr := errors.New("upstream unavailable")
	fake := &fakeCompleter{err: backendErr}
	svc := NewService(fake, 0, nil)

	_, err := svc.Extract(context.Background(), models.OwnerDocument, "some text")
	assert.ErrorIs(t, err, backendErr)
}
