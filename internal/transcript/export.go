// ABOUTME: Transcript export for conversation ledgers.
// ABOUTME: Renders recorded activities as HTML, converting markdown message text with goldmark.

package transcript

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"

	"github.com/brunobisognidev/botframework-solutions/internal/state"
)

// Source lists a conversation's recorded activities in order.
type Source interface {
	ListTranscript(ctx context.Context, conversationID string, limit int) ([]*state.TranscriptEntry, error)
}

// ExportHTML writes the conversation's transcript as a standalone HTML
// document. Message text is treated as markdown; other activity types are
// rendered as one-line notices.
func ExportHTML(ctx context.Context, src Source, conversationID string, w io.Writer) error {
	entries, err := src.ListTranscript(ctx, conversationID, 0)
	if err != nil {
		return fmt.Errorf("listing transcript: %w", err)
	}

	fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Transcript %s</title></head>\n<body>\n",
		html.EscapeString(conversationID))
	fmt.Fprintf(w, "<h1>Conversation %s</h1>\n", html.EscapeString(conversationID))

	for _, entry := range entries {
		fmt.Fprintf(w, "<div class=\"entry %s\">\n", html.EscapeString(entry.Direction))
		fmt.Fprintf(w, "<p class=\"meta\">%s · %s · %s</p>\n",
			entry.RecordedAt.Format("2006-01-02 15:04:05"),
			html.EscapeString(entry.Direction),
			html.EscapeString(entry.Type),
		)
		if entry.Text != "" {
			var rendered bytes.Buffer
			if err := goldmark.Convert([]byte(entry.Text), &rendered); err != nil {
				fmt.Fprintf(w, "<p>%s</p>\n", html.EscapeString(entry.Text))
			} else {
				w.Write(rendered.Bytes())
			}
		}
		fmt.Fprint(w, "</div>\n")
	}

	fmt.Fprint(w, "</body>\n</html>\n")
	return nil
}

// ExportText writes the transcript as plain text, one line per entry.
func ExportText(ctx context.Context, src Source, conversationID string, w io.Writer) error {
	entries, err := src.ListTranscript(ctx, conversationID, 0)
	if err != nil {
		return fmt.Errorf("listing transcript: %w", err)
	}

	for _, entry := range entries {
		fmt.Fprintf(w, "%s  %-8s  %-18s  %s\n",
			entry.RecordedAt.Format("15:04:05"),
			entry.Direction,
			entry.Type,
			entry.Text,
		)
	}
	return nil
}
