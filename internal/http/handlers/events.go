package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/johnlen7/teacher-sarah/internal/dispatch"
	"github.com/johnlen7/teacher-sarah/internal/domain"
)

type eventRequest struct {
	ChatID   int64  `json:"chat_id"`
	UserID   int64  `json:"user_id,omitempty"`
	Kind     string `json:"kind"`
	Text     string `json:"text,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
	Async    bool   `json:"async,omitempty"`
}

type replyPayload struct {
	Text          string `json:"text"`
	EnglishOnly   string `json:"english_only"`
	Corrections   string `json:"corrections,omitempty"`
	HasCorrection bool   `json:"has_corrections"`
	Transcription string `json:"transcription,omitempty"`
	AudioPath     string `json:"audio_path,omitempty"`
	CacheHit      bool   `json:"cache_hit"`
	UsedFallback  bool   `json:"used_fallback"`
	ModelID       string `json:"model_id,omitempty"`
}

// Events accepts one learner message and schedules it on the per-chat queue.
// By default the call waits for Sarah's reply; async requests get 202 with
// the event id instead.
func (api *API) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request eventRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "malformed payload")
		return
	}
	if err := validateEventRequest(&request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if api.chatLimiter != nil && !api.chatLimiter.Allow(request.ChatID) {
		w.Header().Set("Retry-After", "1")
		writeError(w, r, http.StatusTooManyRequests, "chat_rate_limited", "too many messages for this chat")
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(request)
	if idempotencyKey != "" {
		if entry, ok := api.idempotency.Get(idempotencyKey); ok {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different payload")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"event_id": entry.EventID,
				"status":   "duplicate",
			})
			return
		}
	}

	event := domain.InboundEvent{
		EventID:    uuid.NewString(),
		ChatID:     request.ChatID,
		UserID:     request.UserID,
		Kind:       domain.EventKind(request.Kind),
		Text:       request.Text,
		AudioURL:   request.AudioURL,
		ReceivedAt: time.Now().UTC(),
	}

	ticket, err := api.dispatcher.Submit(r.Context(), event.ChatID, event, domain.PriorityForKind(event.Kind))
	if err != nil {
		if errors.Is(err, dispatch.ErrDispatcherClosed) {
			writeError(w, r, http.StatusServiceUnavailable, "shutting_down", "service is shutting down")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to enqueue event")
		return
	}

	if idempotencyKey != "" {
		api.idempotency.Put(idempotencyKey, payloadHash, event.EventID)
	}

	if request.Async {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"event_id":  event.EventID,
			"ticket_id": ticket.ID,
			"status":    "queued",
		})
		return
	}

	value, err := ticket.Wait(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrHandlerTimeout):
			writeError(w, r, http.StatusGatewayTimeout, "handler_timeout", "processing timed out")
		case errors.Is(err, dispatch.ErrDispatcherClosed):
			writeError(w, r, http.StatusServiceUnavailable, "shutting_down", "service is shutting down")
		case r.Context().Err() != nil:
			// Client went away; the event still processes in order.
		default:
			writeError(w, r, http.StatusInternalServerError, "processing_error", err.Error())
		}
		return
	}

	reply, ok := value.(domain.Reply)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "unexpected handler result")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event_id": event.EventID,
		"reply": replyPayload{
			Text:          reply.Text,
			EnglishOnly:   reply.EnglishOnly,
			Corrections:   reply.Corrections,
			HasCorrection: reply.HasCorrection,
			Transcription: reply.Transcription,
			AudioPath:     reply.AudioPath,
			CacheHit:      reply.CacheHit,
			UsedFallback:  reply.UsedFallback,
			ModelID:       reply.ModelID,
		},
	})
}

func validateEventRequest(request *eventRequest) error {
	if request.ChatID <= 0 {
		return errors.New("chat_id is required")
	}
	if request.UserID == 0 {
		request.UserID = request.ChatID
	}

	kind := domain.EventKind(strings.TrimSpace(request.Kind))
	switch kind {
	case domain.EventKindText:
		if strings.TrimSpace(request.Text) == "" {
			return errors.New("text is required for text events")
		}
	case domain.EventKindVoice:
		if strings.TrimSpace(request.AudioURL) == "" {
			return errors.New("audio_url is required for voice events")
		}
	default:
		return errors.New("kind must be text or voice")
	}
	request.Kind = string(kind)
	return nil
}
