package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for record ids.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Prefixed returns New() joined to prefix with a dash ("ptk-01J...").
func Prefixed(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return New()
	}
	return prefix + "-" + New()
}
