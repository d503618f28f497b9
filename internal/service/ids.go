package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newID builds "<prefix>-<unix ms>-<random>". Independent callers can mint
// ids without a shared counter; the UUID suffix makes collisions negligible.
func newID(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), suffix)
}
