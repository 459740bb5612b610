package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decidepage/core/internal/models"
	"github.com/decidepage/core/internal/modules/intelligence"
)

type fakeStreamer struct {
	chunks  []string
	err     error
	lastSys string
}

func (f *fakeStreamer) Stream(_ context.Context, systemPrompt, _ string, onToken func(string) error) (string, error) {
	f.lastSys = systemPrompt
	if f.err != nil {
		return "", f.err
	}
	var full strings.Builder
	for _, c := range f.chunks {
		full.WriteString(c)
		if onToken != nil {
			if err := onToken(c); err != nil {
				return "", err
			}
		}
	}
	return full.String(), nil
}

func TestNormalizeDefaults(t *testing.T) {
	doc, err := Options{}.Normalize(models.OwnerDocument)
	require.NoError(t, err)
	assert.Equal(t, Options{Style: StyleTechnical, Language: LanguageEN, PageLimit: 2}, doc)

	meeting, err := Options{}.Normalize(models.OwnerMeeting)
	require.NoError(t, err)
	assert.Equal(t, StyleExecutive, meeting.Style)
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	_, err := Options{Style: "casual"}.Normalize(models.OwnerDocument)
	assert.Error(t, err)

	_, err = Options{Language: "fr"}.Normalize(models.OwnerDocument)
	assert.Error(t, err)

	_, err = Options{PageLimit: 4}.Normalize(models.OwnerDocument)
	assert.Error(t, err)

	_, err = Options{PageLimit: -1}.Normalize(models.OwnerDocument)
	assert.Error(t, err)
}

func TestRenderStreamsChunksInOrder(t *testing.T) {
	fake := &fakeStreamer{chunks: []string{"<h1>A</h1>", "<p>B</p>", "<p>C</p>"}}
	svc := NewService(fake, nil)

	var got []string
	html, err := svc.Render(context.Background(), models.OwnerDocument,
		intelligence.Payload{"document_overview": "x"},
		Options{Style: StyleTechnical},
		func(chunk string) error {
			got = append(got, chunk)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"<h1>A</h1>", "<p>B</p>", "<p>C</p>"}, got)
	assert.Equal(t, "<h1>A</h1><p>B</p><p>C</p>", html)
	assert.Contains(t, fake.lastSys, styleGuides[StyleTechnical])
}

func TestRenderChunkErrorAborts(t *testing.T) {
	fake := &fakeStreamer{chunks: []string{"a", "b", "c"}}
	svc := NewService(fake, nil)

	sinkErr := errors.New("client gone")
	seen := 0
	_, err := svc.Render(context.Background(), models.OwnerDocument,
		intelligence.Payload{"document_overview": "x"}, Options{},
		func(string) error {
			seen++
			if seen == 2 {
				return sinkErr
			}
			return nil
		})
	assert.ErrorIs(t, err, sinkErr)
	assert.Equal(t, 2, seen)
}

func TestRenderEmptyPayload(t *testing.T) {
	svc := NewService(&fakeStreamer{}, nil)
	_, err := svc.Render(context.Background(), models.OwnerDocument, nil, Options{}, nil)
	assert.Error(t, err)
}

func TestRenderMeetingPrompt(t *testing.T) {
	fake := &fakeStreamer{chunks: []string{"<div>ok</div>"}}
	svc := NewService(fake, nil)

	_, err := svc.Render(context.Background(), models.OwnerMeeting,
		intelligence.Payload{"meeting_overview": "x"}, Options{}, nil)
	require.NoError(t, err)
	assert.Contains(t, fake.lastSys, "Facts, Stances, Values")
}

func TestWrapDocument(t *testing.T) {
	fragment := "<h1>Decision</h1><p>body</p>"
	wrapped := WrapDocument(fragment)
	assert.Contains(t, wrapped, "<!DOCTYPE html>")
	assert.Contains(t, wrapped, fragment)

	// Wrapping a complete document is a no-op.
	assert.Equal(t, wrapped, WrapDocument(wrapped))

	full := "<html><body>x</body></html>"
	assert.Equal(t, full, WrapDocument(full))

	assert.Equal(t, "", WrapDocument("  \n "))
}
