package ai

import "strings"

type TaskKind string

const (
	// TaskConversation is the main tutoring reply for a text message.
	TaskConversation TaskKind = "conversation"
	// TaskVoiceReply answers a transcribed voice note; shorter output keeps
	// the synthesized audio manageable.
	TaskVoiceReply TaskKind = "voice_reply"
)

type ModelProfile struct {
	PrimaryModel    string
	FallbackModel   string
	Temperature     float64
	MaxOutputTokens int
}

type ModelRouterConfig struct {
	ChatPrimary  string
	ChatFallback string
}

type ModelRouter struct {
	config ModelRouterConfig
}

func NewModelRouter(config ModelRouterConfig) *ModelRouter {
	if strings.TrimSpace(config.ChatPrimary) == "" {
		config.ChatPrimary = "deepseek/deepseek-chat"
	}
	if strings.TrimSpace(config.ChatFallback) == "" {
		config.ChatFallback = "deepseek/deepseek-chat-v3-0324:free"
	}
	return &ModelRouter{config: config}
}

func (r *ModelRouter) Select(task TaskKind) ModelProfile {
	switch task {
	case TaskVoiceReply:
		return ModelProfile{
			PrimaryModel:    r.config.ChatPrimary,
			FallbackModel:   r.config.ChatFallback,
			Temperature:     0.7,
			MaxOutputTokens: 400,
		}
	default:
		return ModelProfile{
			PrimaryModel:    r.config.ChatPrimary,
			FallbackModel:   r.config.ChatFallback,
			Temperature:     0.7,
			MaxOutputTokens: 1000,
		}
	}
}
