// Package policy validates and sanitizes learner input before it reaches the
// dispatch queue.
package policy

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmptyText      = errors.New("text is empty")
	ErrTextTooLong    = errors.New("text exceeds maximum length")
	ErrBlockedContent = errors.New("text contains blocked content")
	ErrAudioTooLarge  = errors.New("audio exceeds maximum size")
	ErrEmptyAudio     = errors.New("audio is empty")
)

var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)data:text/html`),
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

type ValidatorConfig struct {
	MaxTextLength int
	MaxAudioBytes int
}

type Validator struct {
	maxTextLength int
	maxAudioBytes int
}

func NewValidator(config ValidatorConfig) *Validator {
	if config.MaxTextLength <= 0 {
		config.MaxTextLength = 4000
	}
	if config.MaxAudioBytes <= 0 {
		config.MaxAudioBytes = 20 * 1024 * 1024
	}
	return &Validator{
		maxTextLength: config.MaxTextLength,
		maxAudioBytes: config.MaxAudioBytes,
	}
}

// ValidateText checks limits and blocked patterns and returns the sanitized
// text with HTML stripped.
func (v *Validator) ValidateText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyText
	}
	if len(trimmed) > v.maxTextLength {
		return "", ErrTextTooLong
	}
	for _, pattern := range blockedPatterns {
		if pattern.MatchString(trimmed) {
			return "", ErrBlockedContent
		}
	}
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(trimmed, "")), nil
}

// ValidateAudioSize bounds the declared size of a voice note.
func (v *Validator) ValidateAudioSize(size int) error {
	if size <= 0 {
		return ErrEmptyAudio
	}
	if size > v.maxAudioBytes {
		return ErrAudioTooLarge
	}
	return nil
}
