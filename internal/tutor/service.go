// Package tutor produces Sarah's replies: persona prompt construction, the
// model call with fallback, correction parsing and the reply cache.
package tutor

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/johnlen7/teacher-sarah/internal/ai"
	"github.com/johnlen7/teacher-sarah/internal/cache"
	"github.com/johnlen7/teacher-sarah/internal/domain"
	"github.com/johnlen7/teacher-sarah/internal/grammar"
)

const correctionsSeparator = "---"

type Request struct {
	ChatID  int64
	Message string
	Level   string
	IsVoice bool
	History []domain.StoredMessage
}

type Config struct {
	HistoryWindow int
	Logger        *log.Logger
}

type Service struct {
	client        ai.ChatClient
	router        *ai.ModelRouter
	store         cache.ReplyStore
	historyWindow int
	logger        *log.Logger
}

func NewService(client ai.ChatClient, router *ai.ModelRouter, store cache.ReplyStore, cfg Config) *Service {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if router == nil {
		router = ai.NewModelRouter(ai.ModelRouterConfig{})
	}
	return &Service{
		client:        client,
		router:        router,
		store:         store,
		historyWindow: cfg.HistoryWindow,
		logger:        cfg.Logger,
	}
}

// Respond generates Sarah's reply for one student message. Provider failures
// degrade to the keyword fallback instead of surfacing an error; only context
// cancellation aborts.
func (s *Service) Respond(ctx context.Context, req Request) (domain.Reply, error) {
	level, ok := domain.NormalizeEnglishLevel(req.Level)
	if !ok {
		level = domain.DefaultEnglishLevel
	}

	kind := "text"
	task := ai.TaskConversation
	if req.IsVoice {
		kind = "voice"
		task = ai.TaskVoiceReply
	}

	issues := grammar.Check(req.Message)

	signature := cache.BuildSignature(req.Message, level, kind)
	if reply, found := s.cachedReply(ctx, signature); found {
		return reply, nil
	}

	profile := s.router.Select(task)
	chatRequest := ai.ChatRequest{
		Model:           profile.PrimaryModel,
		Instructions:    BuildSystemPrompt(level, req.IsVoice),
		History:         s.historyMessages(req.History),
		Input:           BuildUserContent(req.Message, issues),
		Temperature:     profile.Temperature,
		MaxOutputTokens: profile.MaxOutputTokens,
	}

	result, err := s.client.Chat(ctx, chatRequest)
	if err != nil && profile.FallbackModel != "" && profile.FallbackModel != profile.PrimaryModel {
		if s.logger != nil {
			s.logger.Printf("primary model failed chat_id=%d model=%s err=%v", req.ChatID, profile.PrimaryModel, err)
		}
		chatRequest.Model = profile.FallbackModel
		result, err = s.client.Chat(ctx, chatRequest)
	}
	if err != nil {
		if ctx.Err() != nil {
			return domain.Reply{}, ctx.Err()
		}
		if s.logger != nil {
			s.logger.Printf("model unavailable chat_id=%d err=%v", req.ChatID, err)
		}
		text := FallbackReply(req.Message, level)
		return domain.Reply{
			Text:         text,
			EnglishOnly:  text,
			UsedFallback: true,
		}, nil
	}

	reply := parseReply(result.Text)
	reply.ModelID = result.ModelID
	if !reply.HasCorrection && len(issues) > 0 {
		reply.Corrections = grammar.FormatCorrectionsPortuguese(issues)
		reply.HasCorrection = true
		reply.Text = reply.EnglishOnly + "\n\n" + correctionsSeparator + "\n" + reply.Corrections
	}

	s.storeReply(ctx, signature, reply)
	return reply, nil
}

// parseReply splits the model output on the corrections separator: English
// before it, Portuguese corrections after.
func parseReply(content string) domain.Reply {
	parts := strings.SplitN(content, correctionsSeparator, 2)
	reply := domain.Reply{
		Text:        strings.TrimSpace(content),
		EnglishOnly: strings.TrimSpace(parts[0]),
	}
	if len(parts) > 1 {
		reply.HasCorrection = true
		reply.Corrections = strings.TrimSpace(parts[1])
	}
	return reply
}

func (s *Service) historyMessages(history []domain.StoredMessage) []ai.Message {
	if len(history) > s.historyWindow {
		history = history[len(history)-s.historyWindow:]
	}
	messages := make([]ai.Message, 0, len(history))
	for _, stored := range history {
		role := "user"
		if stored.Author == domain.MessageAuthorSarah {
			role = "assistant"
		}
		messages = append(messages, ai.Message{Role: role, Content: stored.Content})
	}
	return messages
}

func (s *Service) cachedReply(ctx context.Context, signature string) (domain.Reply, bool) {
	if s.store == nil {
		return domain.Reply{}, false
	}
	entry, found, err := s.store.Get(ctx, signature)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("reply cache get failed err=%v", err)
		}
		return domain.Reply{}, false
	}
	if !found {
		return domain.Reply{}, false
	}

	var reply domain.Reply
	if err := json.Unmarshal(entry.Value, &reply); err != nil {
		return domain.Reply{}, false
	}
	reply.CacheHit = true
	return reply, true
}

func (s *Service) storeReply(ctx context.Context, signature string, reply domain.Reply) {
	if s.store == nil || reply.UsedFallback {
		return
	}
	encoded, err := json.Marshal(reply)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, signature, cache.Entry{Value: encoded, ModelID: reply.ModelID}); err != nil && s.logger != nil {
		s.logger.Printf("reply cache set failed err=%v", err)
	}
}
