package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API, the dispatcher and the
// tutoring pipeline.
type Config struct {
	Port string

	AuthToken string

	CORSAllowedOrigins []string

	DatabaseURL string

	DispatchCapacity          int
	DispatchHandlerTimeoutMS  int
	DispatchIdleRetirementMS  int

	OpenRouterAPIKey     string
	OpenRouterBaseURL    string
	OpenRouterTimeoutMS  int
	OpenRouterMaxRetries int
	OpenRouterReferer    string
	OpenRouterTitle      string
	ChatModelPrimary     string
	ChatModelFallback    string

	WhisperBaseURL   string
	WhisperTimeoutMS int
	TTSBaseURL       string
	TTSVoice         string
	TTSTimeoutMS     int
	MaxAudioBytes    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ResponseCacheTTLSeconds int
	ResponseCacheMaxEntries int

	RateLimitRPS   float64
	RateLimitBurst int

	ChatRateLimitRPS   float64
	ChatRateLimitBurst int

	MaxMessageLength int
	HistoryWindow    int
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		DispatchCapacity:         getEnvInt("DISPATCH_CAPACITY", 15),
		DispatchHandlerTimeoutMS: getEnvInt("DISPATCH_HANDLER_TIMEOUT_MS", 90000),
		DispatchIdleRetirementMS: getEnvInt("DISPATCH_IDLE_RETIREMENT_MS", 300000),

		OpenRouterAPIKey:     getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:    getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterTimeoutMS:  getEnvInt("OPENROUTER_TIMEOUT_MS", 30000),
		OpenRouterMaxRetries: getEnvInt("OPENROUTER_MAX_RETRIES", 2),
		OpenRouterReferer:    getEnv("OPENROUTER_REFERER", "https://github.com/johnlen7/teacher-sarah"),
		OpenRouterTitle:      getEnv("OPENROUTER_TITLE", "Teacher Sarah"),
		ChatModelPrimary:     getEnv("CHAT_MODEL_PRIMARY", "deepseek/deepseek-chat"),
		ChatModelFallback:    getEnv("CHAT_MODEL_FALLBACK", "deepseek/deepseek-chat-v3-0324:free"),

		WhisperBaseURL:   getEnv("WHISPER_BASE_URL", ""),
		WhisperTimeoutMS: getEnvInt("WHISPER_TIMEOUT_MS", 60000),
		TTSBaseURL:       getEnv("TTS_BASE_URL", ""),
		TTSVoice:         getEnv("TTS_VOICE", "en-US-AvaNeural"),
		TTSTimeoutMS:     getEnvInt("TTS_TIMEOUT_MS", 30000),
		MaxAudioBytes:    getEnvInt("MAX_AUDIO_BYTES", 20*1024*1024),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		ResponseCacheTTLSeconds: getEnvInt("RESPONSE_CACHE_TTL_SECONDS", 3600),
		ResponseCacheMaxEntries: getEnvInt("RESPONSE_CACHE_MAX_ENTRIES", 2000),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		ChatRateLimitRPS:   getEnvFloat("CHAT_RATE_LIMIT_RPS", 1),
		ChatRateLimitBurst: getEnvInt("CHAT_RATE_LIMIT_BURST", 5),

		MaxMessageLength: getEnvInt("MAX_MESSAGE_LENGTH", 4000),
		HistoryWindow:    getEnvInt("HISTORY_WINDOW", 10),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		result = append(result, part)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
