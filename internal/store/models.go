// models.go -- Row types for the store package.
package store

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// LoginEvent is one row of login_events: a callback outcome or a logout.
// Subject is empty for opaque-token providers and for failures before ID-token
// verification. IPAddress and UserAgent are nil when the caller didn't supply them.
type LoginEvent struct {
	ID        uuid.UUID
	Provider  string
	Action    string // "login" or "logout"
	Outcome   string // "success", "state_mismatch", "exchange_failed", ...
	Subject   string
	IPAddress *string
	UserAgent *string
	CreatedAt time.Time
}
