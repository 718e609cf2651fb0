package uuid

import (
	"strings"

	google_uuid "github.com/google/uuid"
)

// MustUUID returns a new random UUID string
func MustUUID() string {
	return google_uuid.New().String()
}

// MustID returns a new random identifier formatted as
// 32 hex characters without dashes, the format used
// for tablet ids.
func MustID() string {
	return strings.Replace(google_uuid.New().String(), "-", "", -1)
}
