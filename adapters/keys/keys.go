// Package keys loads the RSA key pairs used to sign and verify session tokens.
//
// Every key is configured as a base64-encoded PEM block. The four entries are
// decoded once at start-up into a Set which is read-only afterwards and can be
// shared by concurrent signers and verifiers.
package keys

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/warden/core"
)

const (
	EnvAccessPrivate  = "ACCESS_TOKEN_PRIVATE_KEY"
	EnvAccessPublic   = "ACCESS_TOKEN_PUBLIC_KEY"
	EnvRefreshPrivate = "REFRESH_TOKEN_PRIVATE_KEY"
	EnvRefreshPublic  = "REFRESH_TOKEN_PUBLIC_KEY"
)

type slot struct {
	role    core.Role
	keyType core.KeyType
}

var entries = map[slot]string{
	{core.RoleAccess, core.KeyPrivate}:  EnvAccessPrivate,
	{core.RoleAccess, core.KeyPublic}:   EnvAccessPublic,
	{core.RoleRefresh, core.KeyPrivate}: EnvRefreshPrivate,
	{core.RoleRefresh, core.KeyPublic}:  EnvRefreshPublic,
}

// EntryName returns the configuration entry holding the key for role and keyType
func EntryName(role core.Role, keyType core.KeyType) string {
	return entries[slot{role, keyType}]
}

// LookupFunc reads a configuration entry, reporting whether it is set
type LookupFunc func(name string) (string, bool)

// Set holds the parsed key pairs for both roles
type Set struct {
	private map[core.Role]*rsa.PrivateKey
	public  map[core.Role]*rsa.PublicKey
}

// FromEnv loads all keys from process environment variables
func FromEnv() (*Set, error) {
	return Load(os.LookupEnv)
}

// Load decodes all four configured keys. Any missing or malformed entry
// fails the whole load with an error wrapping core.ErrKeyMaterial.
func Load(lookup LookupFunc) (*Set, error) {
	set := &Set{
		private: make(map[core.Role]*rsa.PrivateKey, 2),
		public:  make(map[core.Role]*rsa.PublicKey, 2),
	}

	for _, role := range []core.Role{core.RoleAccess, core.RoleRefresh} {
		priv, err := LoadKey(lookup, role, core.KeyPrivate)
		if err != nil {
			return nil, err
		}
		pub, err := LoadKey(lookup, role, core.KeyPublic)
		if err != nil {
			return nil, err
		}
		set.private[role] = priv.(*rsa.PrivateKey)
		set.public[role] = pub.(*rsa.PublicKey)
	}

	return set, nil
}

// LoadKey decodes a single key. The result is *rsa.PrivateKey for
// core.KeyPrivate and *rsa.PublicKey for core.KeyPublic.
func LoadKey(lookup LookupFunc, role core.Role, keyType core.KeyType) (any, error) {
	name := EntryName(role, keyType)
	if name == "" {
		return nil, fmt.Errorf("%w: unknown key %s/%s", core.ErrKeyMaterial, role, keyType)
	}

	armored, ok := lookup(name)
	if !ok || strings.TrimSpace(armored) == "" {
		return nil, fmt.Errorf("%w: %s is not set", core.ErrKeyMaterial, name)
	}

	pem, err := base64.StdEncoding.DecodeString(strings.TrimSpace(armored))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid base64", core.ErrKeyMaterial, name)
	}

	switch keyType {
	case core.KeyPrivate:
		key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrKeyMaterial, name, err)
		}
		return key, nil
	default:
		key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrKeyMaterial, name, err)
		}
		return key, nil
	}
}

// PrivateKey returns the signing key for role
func (s *Set) PrivateKey(role core.Role) (*rsa.PrivateKey, error) {
	key, ok := s.private[role]
	if !ok {
		return nil, fmt.Errorf("%w: no private key for %s tokens", core.ErrKeyMaterial, role)
	}
	return key, nil
}

// PublicKey returns the verification key for role
func (s *Set) PublicKey(role core.Role) (*rsa.PublicKey, error) {
	key, ok := s.public[role]
	if !ok {
		return nil, fmt.Errorf("%w: no public key for %s tokens", core.ErrKeyMaterial, role)
	}
	return key, nil
}
