package core

import "time"

// Role selects which key pair signs or verifies a token
type Role int

const (
	RoleAccess Role = iota
	RoleRefresh
)

func (r Role) String() string {
	switch r {
	case RoleAccess:
		return "access"
	case RoleRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// KeyType is the half of a key pair
type KeyType int

const (
	KeyPrivate KeyType = iota
	KeyPublic
)

func (k KeyType) String() string {
	switch k {
	case KeyPrivate:
		return "private"
	case KeyPublic:
		return "public"
	default:
		return "unknown"
	}
}

// Claims is the decoded payload of a verified token
type Claims struct {
	Issuer    string
	Subject   string // User.ID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is the result of a successful login or refresh.
// RefreshToken is empty when only the access token was reissued.
type Session struct {
	User             *User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
