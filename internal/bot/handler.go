// Package bot runs the tutoring pipeline for one dispatched event: validate,
// transcribe voice notes, generate Sarah's reply and persist the exchange.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/johnlen7/teacher-sarah/internal/dispatch"
	"github.com/johnlen7/teacher-sarah/internal/domain"
	"github.com/johnlen7/teacher-sarah/internal/metrics"
	"github.com/johnlen7/teacher-sarah/internal/policy"
	"github.com/johnlen7/teacher-sarah/internal/repository"
	"github.com/johnlen7/teacher-sarah/internal/speech"
	"github.com/johnlen7/teacher-sarah/internal/tutor"
)

type Handler struct {
	students    repository.StudentsRepository
	tutor       *tutor.Service
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	validator   *policy.Validator
	collector   *metrics.Collector
	logger      *log.Logger

	httpClient    *http.Client
	maxAudioBytes int
	historyWindow int
}

type HandlerConfig struct {
	MaxAudioBytes int
	HistoryWindow int
	HTTPClient    *http.Client
	Logger        *log.Logger
}

func NewHandler(
	students repository.StudentsRepository,
	tutorService *tutor.Service,
	transcriber speech.Transcriber,
	synthesizer speech.Synthesizer,
	validator *policy.Validator,
	collector *metrics.Collector,
	cfg HandlerConfig,
) *Handler {
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = 20 * 1024 * 1024
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if validator == nil {
		validator = policy.NewValidator(policy.ValidatorConfig{})
	}
	return &Handler{
		students:      students,
		tutor:         tutorService,
		transcriber:   transcriber,
		synthesizer:   synthesizer,
		validator:     validator,
		collector:     collector,
		logger:        cfg.Logger,
		httpClient:    cfg.HTTPClient,
		maxAudioBytes: cfg.MaxAudioBytes,
		historyWindow: cfg.HistoryWindow,
	}
}

// DispatchHandler adapts Process to the dispatcher's handler signature.
func (h *Handler) DispatchHandler() dispatch.Handler {
	return func(ctx context.Context, _ int64, payload any) (any, error) {
		event, ok := payload.(domain.InboundEvent)
		if !ok {
			return nil, fmt.Errorf("unexpected payload type %T", payload)
		}
		return h.Process(ctx, event)
	}
}

// Process handles one inbound event end to end. It runs inside the dispatch
// pool, so at most one call per chat executes at a time.
func (h *Handler) Process(ctx context.Context, event domain.InboundEvent) (domain.Reply, error) {
	start := time.Now()

	user, err := h.ensureUser(ctx, event)
	if err != nil {
		h.trackError()
		return domain.Reply{}, err
	}

	text := event.Text
	transcription := ""
	if event.Kind == domain.EventKindVoice {
		transcription, err = h.transcribeVoice(ctx, event)
		if err != nil {
			h.trackError()
			return domain.Reply{}, err
		}
		text = transcription
	}

	sanitized, err := h.validator.ValidateText(text)
	if err != nil {
		h.trackError()
		return domain.Reply{}, fmt.Errorf("invalid message: %w", err)
	}

	history, err := h.students.RecentMessages(ctx, event.ChatID, h.historyWindow)
	if err != nil {
		if h.logger != nil {
			h.logger.Printf("history load failed chat_id=%d err=%v", event.ChatID, err)
		}
		history = nil
	}

	reply, err := h.tutor.Respond(ctx, tutor.Request{
		ChatID:  event.ChatID,
		Message: sanitized,
		Level:   user.EnglishLevel,
		IsVoice: event.Kind == domain.EventKindVoice,
		History: history,
	})
	if err != nil {
		h.trackError()
		return domain.Reply{}, err
	}
	reply.Transcription = transcription

	if event.Kind == domain.EventKindVoice && h.synthesizer != nil && h.synthesizer.Available() {
		audioPath, synthErr := h.synthesizer.Synthesize(ctx, reply.EnglishOnly)
		if synthErr != nil {
			if h.logger != nil {
				h.logger.Printf("speech synthesis failed chat_id=%d err=%v", event.ChatID, synthErr)
			}
		} else {
			reply.AudioPath = audioPath
		}
	}

	h.persistExchange(ctx, event, sanitized, reply)

	if h.collector != nil {
		h.collector.TrackMessage(event.UserID, event.Kind, time.Since(start))
	}
	if h.logger != nil {
		h.logger.Printf(
			"event processed chat_id=%d kind=%s cache_hit=%t fallback=%t duration_ms=%d",
			event.ChatID, event.Kind, reply.CacheHit, reply.UsedFallback,
			time.Since(start).Milliseconds(),
		)
	}
	return reply, nil
}

func (h *Handler) ensureUser(ctx context.Context, event domain.InboundEvent) (*domain.User, error) {
	user, err := h.students.GetUser(ctx, event.ChatID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}

	fresh := &domain.User{ChatID: event.ChatID, EnglishLevel: domain.DefaultEnglishLevel}
	if err := h.students.UpsertUser(ctx, fresh); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return fresh, nil
}

func (h *Handler) transcribeVoice(ctx context.Context, event domain.InboundEvent) (string, error) {
	if h.transcriber == nil || !h.transcriber.Available() {
		return "", speech.ErrTranscriberUnavailable
	}

	audio, err := h.fetchAudio(ctx, event.AudioURL)
	if err != nil {
		return "", err
	}
	if err := h.validator.ValidateAudioSize(len(audio)); err != nil {
		return "", fmt.Errorf("invalid audio: %w", err)
	}

	transcription, err := h.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return transcription, nil
}

func (h *Handler) fetchAudio(ctx context.Context, audioURL string) ([]byte, error) {
	if audioURL == "" {
		return nil, errors.New("voice event without audio url")
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create audio request: %w", err)
	}
	response, err := h.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, fmt.Errorf("fetch audio status %d", response.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(response.Body, int64(h.maxAudioBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}

// persistExchange records both turns of the conversation. Persistence
// failures are logged, not surfaced: the learner already has the reply.
func (h *Handler) persistExchange(ctx context.Context, event domain.InboundEvent, text string, reply domain.Reply) {
	userMessage := &domain.StoredMessage{
		ChatID:      event.ChatID,
		Author:      domain.MessageAuthorUser,
		Content:     text,
		IsVoice:     event.Kind == domain.EventKindVoice,
		HasErrors:   reply.HasCorrection,
		Corrections: reply.Corrections,
		CreatedAt:   event.ReceivedAt,
	}
	if err := h.students.AppendMessage(ctx, userMessage); err != nil && h.logger != nil {
		h.logger.Printf("persist user message failed chat_id=%d err=%v", event.ChatID, err)
	}

	sarahMessage := &domain.StoredMessage{
		ChatID:  event.ChatID,
		Author:  domain.MessageAuthorSarah,
		Content: reply.Text,
	}
	if err := h.students.AppendMessage(ctx, sarahMessage); err != nil && h.logger != nil {
		h.logger.Printf("persist reply failed chat_id=%d err=%v", event.ChatID, err)
	}
}

func (h *Handler) trackError() {
	if h.collector != nil {
		h.collector.TrackError()
	}
}
