// ABOUTME: Tests for transcript export rendering
// ABOUTME: Covers the HTML document shape, markdown conversion, and plain-text lines

package transcript

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobisognidev/botframework-solutions/internal/state"
)

type fakeSource struct {
	entries []*state.TranscriptEntry
	err     error
}

func (f *fakeSource) ListTranscript(_ context.Context, _ string, _ int) ([]*state.TranscriptEntry, error) {
	return f.entries, f.err
}

func testEntries() []*state.TranscriptEntry {
	at := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	return []*state.TranscriptEntry{
		{
			ID:             "e1",
			ConversationID: "conv-1",
			Direction:      state.DirectionInbound,
			Type:           "message",
			Author:         "user-1",
			Text:           "Book me a **window** seat",
			RecordedAt:     at,
		},
		{
			ID:             "e2",
			ConversationID: "conv-1",
			Direction:      state.DirectionOutbound,
			Type:           "message",
			Author:         "bot",
			Text:           "Done.",
			RecordedAt:     at.Add(time.Second),
		},
	}
}

func TestExportHTML(t *testing.T) {
	src := &fakeSource{entries: testEntries()}
	var out bytes.Buffer

	err := ExportHTML(context.Background(), src, "conv-1", &out)
	require.NoError(t, err)

	html := out.String()
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, "<h1>Conversation conv-1</h1>")
	// Markdown emphasis converted
	assert.Contains(t, html, "<strong>window</strong>")
	assert.Contains(t, html, "class=\"entry inbound\"")
	assert.Contains(t, html, "class=\"entry outbound\"")
	assert.Contains(t, html, "2026-03-14 10:30:00")
}

func TestExportHTML_EscapesConversationID(t *testing.T) {
	src := &fakeSource{}
	var out bytes.Buffer

	err := ExportHTML(context.Background(), src, "<script>alert(1)</script>", &out)
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "<script>")
}

func TestExportHTML_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	err := ExportHTML(context.Background(), src, "conv-1", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestExportText(t *testing.T) {
	src := &fakeSource{entries: testEntries()}
	var out bytes.Buffer

	err := ExportText(context.Background(), src, "conv-1", &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "10:30:00")
	assert.Contains(t, text, "inbound")
	assert.Contains(t, text, "Book me a **window** seat")
	assert.Contains(t, text, "Done.")
}
