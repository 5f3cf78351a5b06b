// Package cache provides the prompt-keyed answer cache used by the assistant.
// The default in-process implementation is Memory; Sweeper purges expired
// entries on an elapsed-time gate.
package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultTTL is how long a generated answer stays servable.
const DefaultTTL = time.Hour

// DefaultSweepInterval is the minimum spacing between two sweep passes.
const DefaultSweepInterval = 10 * time.Minute

// Entry is a cached answer for one normalized prompt.
type Entry struct {
	Key      string
	Value    string
	StoredAt time.Time
}

// Cache defines the operations the assistant needs from an answer store.
type Cache interface {
	Get(key string) (Entry, bool)
	Put(key, value string)
	Delete(key string)
	Len() int
	Clear()
	Sweep() int
}

// NormalizeKey trims surrounding whitespace and case-folds the prompt.
func NormalizeKey(prompt string) string {
	return strings.ToLower(strings.TrimSpace(prompt))
}

// Fingerprint returns a stable hex digest of the normalized prompt, suitable
// for correlating log records without storing the prompt text.
func Fingerprint(prompt string) string {
	return strconv.FormatUint(xxhash.Sum64String(NormalizeKey(prompt)), 16)
}
