package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrProviderUnavailable = errors.New("chat provider unavailable")

type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model           string
	Instructions    string
	History         []Message
	Input           string
	Temperature     float64
	MaxOutputTokens int
}

type ChatResult struct {
	Text    string
	ModelID string
	Usage   TokenUsage
}

type ChatClient interface {
	Chat(ctx context.Context, request ChatRequest) (ChatResult, error)
	Available() bool
}

type providerHTTPError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func isRetryableProviderError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *providerHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "timeout") || strings.Contains(message, "tempor")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
