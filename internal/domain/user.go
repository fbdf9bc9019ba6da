package domain

import (
	"strings"
	"time"
)

const DefaultEnglishLevel = "B1"

var englishLevels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

// NormalizeEnglishLevel uppercases and validates a CEFR level, returning the
// default level when the value is not one of A1..C2.
func NormalizeEnglishLevel(level string) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(level))
	for _, known := range englishLevels {
		if normalized == known {
			return normalized, true
		}
	}
	return DefaultEnglishLevel, false
}

// EnglishLevels returns the supported CEFR levels in ascending order.
func EnglishLevels() []string {
	return append([]string(nil), englishLevels...)
}

// User is one learner profile keyed by chat id.
type User struct {
	ChatID       int64
	Username     string
	FirstName    string
	LastName     string
	EnglishLevel string
	CreatedAt    time.Time
	LastActive   time.Time
}

type MessageAuthor string

const (
	MessageAuthorUser  MessageAuthor = "user"
	MessageAuthorSarah MessageAuthor = "sarah"
)

// StoredMessage is one persisted conversation turn.
type StoredMessage struct {
	ID          int64
	ChatID      int64
	Author      MessageAuthor
	Content     string
	IsVoice     bool
	HasErrors   bool
	Corrections string
	CreatedAt   time.Time
}
