package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/johnlen7/teacher-sarah/internal/domain"
	"github.com/johnlen7/teacher-sarah/internal/repository"
)

type userPayload struct {
	ChatID       int64     `json:"chat_id"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	EnglishLevel string    `json:"english_level"`
	CreatedAt    time.Time `json:"created_at"`
	LastActive   time.Time `json:"last_active"`
}

type levelRequest struct {
	Level string `json:"level"`
}

// Users serves GET /v1/users/{chat_id} and PUT /v1/users/{chat_id}/level.
func (api *API) Users(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")

	if strings.HasSuffix(rest, "/level") {
		api.setLevel(w, r, strings.TrimSuffix(rest, "/level"))
		return
	}
	api.getUser(w, r, rest)
}

func (api *API) getUser(w http.ResponseWriter, r *http.Request, rawChatID string) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	chatID, ok := parseChatID(rawChatID)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "chat_id must be a positive integer")
		return
	}

	user, err := api.students.GetUser(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, userPayload{
		ChatID:       user.ChatID,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		EnglishLevel: user.EnglishLevel,
		CreatedAt:    user.CreatedAt,
		LastActive:   user.LastActive,
	})
}

func (api *API) setLevel(w http.ResponseWriter, r *http.Request, rawChatID string) {
	if r.Method != http.MethodPut {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	chatID, ok := parseChatID(rawChatID)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "chat_id must be a positive integer")
		return
	}

	var request levelRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "malformed payload")
		return
	}
	level, valid := domain.NormalizeEnglishLevel(request.Level)
	if !valid {
		writeError(w, r, http.StatusBadRequest, "invalid_request",
			"level must be one of "+strings.Join(domain.EnglishLevels(), ", "))
		return
	}

	err := api.students.SetEnglishLevel(r.Context(), chatID, level)
	if errors.Is(err, repository.ErrNotFound) {
		// First contact through the level endpoint creates the profile.
		err = api.students.UpsertUser(r.Context(), &domain.User{ChatID: chatID, EnglishLevel: level})
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to update level")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chat_id": chatID,
		"level":   level,
	})
}
