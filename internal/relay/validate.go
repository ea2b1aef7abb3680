// internal/relay/validate.go
package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/researchgraph/collabrelay/internal/types"
)

// validatePayload checks that the event data carries the required fields for
// its type and returns the payload to broadcast, which may differ from the
// input (comment bodies are normalized). A returned error is always
// ErrInvalidEventPayload-wrapped.
func validatePayload(eventType types.EventType, data json.RawMessage) (json.RawMessage, error) {
	switch eventType {
	case types.EventCursorMove:
		var p struct {
			X       *float64 `json:"x"`
			Y       *float64 `json:"y"`
			Section string   `json:"section"`
		}
		if err := strictDecode(data, &p); err != nil {
			return nil, err
		}
		if p.X == nil || p.Y == nil {
			return nil, fmt.Errorf("%w: cursor_move requires x and y", types.ErrInvalidEventPayload)
		}
		return data, nil

	case types.EventTextEdit:
		var p struct {
			Content *string `json:"content"`
		}
		if err := strictDecode(data, &p); err != nil {
			return nil, err
		}
		if p.Content == nil {
			return nil, fmt.Errorf("%w: text_edit requires content", types.ErrInvalidEventPayload)
		}
		return data, nil

	case types.EventCommentAdd:
		var p map[string]any
		if err := strictDecode(data, &p); err != nil {
			return nil, err
		}
		content, ok := p["content"].(string)
		if !ok || content == "" {
			return nil, fmt.Errorf("%w: comment_add requires content", types.ErrInvalidEventPayload)
		}
		normalized, changed := normalizeComment(content)
		if !changed {
			return data, nil
		}
		p["content"] = normalized
		out, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidEventPayload, err)
		}
		return out, nil

	case types.EventHypothesisUpdate, types.EventAnalysisUpdate:
		var p struct {
			ID *string `json:"id"`
		}
		if err := strictDecode(data, &p); err != nil {
			return nil, err
		}
		if p.ID == nil || *p.ID == "" {
			return nil, fmt.Errorf("%w: %s requires id", types.ErrInvalidEventPayload, eventType)
		}
		return data, nil
	}

	// user_join/user_leave are derived server-side from transitions; clients
	// cannot emit them, and anything else is unknown.
	return nil, fmt.Errorf("%w: unknown event type %q", types.ErrInvalidEventPayload, eventType)
}

func strictDecode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", types.ErrInvalidEventPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidEventPayload, err)
	}
	return nil
}

// normalizeComment converts comment bodies pasted from rich-text sources
// (HTML fragments) into Markdown so every client renders the same plain
// representation. Non-HTML content passes through untouched.
func normalizeComment(content string) (string, bool) {
	if !strings.ContainsRune(content, '<') || !strings.ContainsRune(content, '>') {
		return content, false
	}
	md, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		return content, false
	}
	md = strings.TrimSpace(md)
	if md == "" || md == content {
		return content, false
	}
	return md, true
}
