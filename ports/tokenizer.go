package ports

import (
	"time"

	"github.com/layer-3/warden/core"
)

// Tokenizer signs and verifies session tokens
type Tokenizer interface {
	// Sign issues a token for subject expiring at expiresAt, using the
	// private key of the given role
	Sign(subject string, expiresAt time.Time, role core.Role) (string, error)

	// Verify returns the token claims, or false when the token is malformed,
	// expired or not signed by the role's key
	Verify(token string, role core.Role) (*core.Claims, bool)
}
