package domain

import "time"

type EventKind string

const (
	EventKindText  EventKind = "text"
	EventKindVoice EventKind = "voice"
)

// Priority orders work within a single conversation. Lower values are served
// first: interactive text preempts queued voice processing for the same chat.
type Priority int

const (
	PriorityInteractive Priority = 1
	PriorityExpensive   Priority = 2
)

// PriorityForKind maps an event kind to its scheduling priority.
func PriorityForKind(kind EventKind) Priority {
	if kind == EventKindVoice {
		return PriorityExpensive
	}
	return PriorityInteractive
}

func (p Priority) Valid() bool {
	return p == PriorityInteractive || p == PriorityExpensive
}

// InboundEvent is one message received from a learner, before scheduling.
type InboundEvent struct {
	EventID    string
	ChatID     int64
	UserID     int64
	Kind       EventKind
	Text       string
	AudioURL   string
	ReceivedAt time.Time
}

// Reply is the tutor's answer to a single inbound event.
type Reply struct {
	Text          string
	EnglishOnly   string
	Corrections   string
	HasCorrection bool
	Transcription string
	AudioPath     string
	CacheHit      bool
	UsedFallback  bool
	ModelID       string
}
