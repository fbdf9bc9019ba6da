// Package cache stores generated replies keyed by a signature of the inbound
// message, so repeated identical prompts do not pay for another model call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

type Entry struct {
	Value     json.RawMessage `json:"value"`
	ModelID   string          `json:"model_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// ReplyStore is the cache contract. Implementations must treat a miss as
// (Entry{}, false, nil); errors are reserved for backend failures.
type ReplyStore interface {
	Get(ctx context.Context, signature string) (Entry, bool, error)
	Set(ctx context.Context, signature string, entry Entry) error
}

// BuildSignature derives a stable cache key from the message and the
// tutoring parameters that shape the reply.
func BuildSignature(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		normalized = append(normalized, strings.TrimSpace(strings.ToLower(part)))
	}
	joined := strings.Join(normalized, "||")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
