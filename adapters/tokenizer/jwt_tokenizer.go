package tokenizer

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"go.uber.org/zap"
)

// KeySource provides the RSA keys for each token role
type KeySource interface {
	PrivateKey(role core.Role) (*rsa.PrivateKey, error)
	PublicKey(role core.Role) (*rsa.PublicKey, error)
}

var errTokenExpired = errors.New("token expired")

// JWTTokenizer implements the Tokenizer interface using RS256 JWTs
type JWTTokenizer struct {
	signKeys   map[core.Role]*rsa.PrivateKey
	verifyKeys map[core.Role]*rsa.PublicKey
	issuer     string
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a JWTTokenizer
type Option func(*JWTTokenizer)

// WithClock replaces the wall clock used for iat and expiry checks
func WithClock(now func() time.Time) Option {
	return func(j *JWTTokenizer) { j.now = now }
}

// WithLogger sets the logger that records verification failures
func WithLogger(logger *zap.Logger) Option {
	return func(j *JWTTokenizer) { j.logger = logger }
}

// NewJWTTokenizer creates a new JWT tokenizer. Keys for both roles are
// resolved up front, so a tokenizer that was built never fails on key lookup.
func NewJWTTokenizer(keys KeySource, issuer string, opts ...Option) (ports.Tokenizer, error) {
	j := &JWTTokenizer{
		signKeys:   make(map[core.Role]*rsa.PrivateKey, 2),
		verifyKeys: make(map[core.Role]*rsa.PublicKey, 2),
		issuer:     issuer,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(j)
	}

	for _, role := range []core.Role{core.RoleAccess, core.RoleRefresh} {
		priv, err := keys.PrivateKey(role)
		if err != nil {
			return nil, err
		}
		pub, err := keys.PublicKey(role)
		if err != nil {
			return nil, err
		}
		j.signKeys[role] = priv
		j.verifyKeys[role] = pub
	}

	return j, nil
}

// Sign creates a token for subject signed with the role's private key
func (j *JWTTokenizer) Sign(subject string, expiresAt time.Time, role core.Role) (string, error) {
	signKey, ok := j.signKeys[role]
	if !ok {
		return "", fmt.Errorf("%w: unknown role %s", core.ErrSigning, role)
	}

	// both claims are stored with second precision
	now := j.now().Truncate(jwt.TimePrecision)
	expiresAt = expiresAt.Truncate(jwt.TimePrecision)
	if !expiresAt.After(now) {
		return "", fmt.Errorf("%w: expiry %s is not after issue time", core.ErrSigning, expiresAt.UTC().Format(time.RFC3339))
	}

	claims := jwt.RegisteredClaims{
		Issuer:    j.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	signedToken, err := token.SignedString(signKey)
	if err != nil {
		return "", fmt.Errorf("%w: %s token: %v", core.ErrSigning, role, err)
	}

	return signedToken, nil
}

// Verify parses the token and checks its signature, issuer and expiry.
// Every failure is logged and reported as false.
func (j *JWTTokenizer) Verify(tokenStr string, role core.Role) (*core.Claims, bool) {
	claims, err := j.parse(tokenStr, role)
	if err != nil {
		j.logger.Debug("token verification failed",
			zap.Stringer("role", role),
			zap.Error(err),
		)
		return nil, false
	}
	return claims, true
}

func (j *JWTTokenizer) parse(tokenStr string, role core.Role) (*core.Claims, error) {
	verifyKey, ok := j.verifyKeys[role]
	if !ok {
		return nil, fmt.Errorf("unknown role %s", role)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(j.issuer),
		jwt.WithTimeFunc(j.now),
	)

	registered := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(tokenStr, registered, func(token *jwt.Token) (interface{}, error) {
		return verifyKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	// a token is live strictly before exp
	if !registered.ExpiresAt.After(j.now()) {
		return nil, errTokenExpired
	}

	if registered.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	claims := &core.Claims{
		Issuer:    registered.Issuer,
		Subject:   registered.Subject,
		ExpiresAt: registered.ExpiresAt.Time,
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}

	return claims, nil
}
