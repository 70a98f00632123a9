package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewNumber builds a human-readable order number such as
// "AGK-20260831-7F3A2B". It is a plain function called explicitly at
// creation time; there are no save hooks that backfill it later.
func NewNumber(id uuid.UUID, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:6]
	return fmt.Sprintf("AGK-%s-%s", at.Format("20060102"), suffix)
}
