package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type historyItem struct {
	ID          int64     `json:"id"`
	Author      string    `json:"author"`
	Content     string    `json:"content"`
	IsVoice     bool      `json:"is_voice"`
	HasErrors   bool      `json:"has_errors"`
	Corrections string    `json:"corrections,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// History returns the most recent conversation turns for a chat, oldest
// first.
func (api *API) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	chatID, ok := parseChatID(strings.TrimPrefix(r.URL.Path, "/v1/history/"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "chat_id must be a positive integer")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	messages, err := api.students.RecentMessages(r.Context(), chatID, limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load history")
		return
	}

	items := make([]historyItem, 0, len(messages))
	for _, message := range messages {
		items = append(items, historyItem{
			ID:          message.ID,
			Author:      string(message.Author),
			Content:     message.Content,
			IsVoice:     message.IsVoice,
			HasErrors:   message.HasErrors,
			Corrections: message.Corrections,
			CreatedAt:   message.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chat_id":  chatID,
		"messages": items,
	})
}

func parseChatID(raw string) (int64, bool) {
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "/"))
	if raw == "" {
		return 0, false
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || chatID <= 0 {
		return 0, false
	}
	return chatID, true
}
