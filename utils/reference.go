package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewReference generates the merchant reference sent to payment providers. It is
// unique per transaction and carries no tenant or clinical information.
func NewReference() string {
	return "PZ-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:20])
}
