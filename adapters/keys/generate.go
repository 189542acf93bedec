package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

// DefaultKeyBits is the modulus size used by Generate
const DefaultKeyBits = 2048

// Generate creates fresh RSA pairs for both roles and returns them as
// configuration entries, keyed by entry name and ready to be exported as
// environment variables.
func Generate(bits int) (map[string]string, error) {
	out := make(map[string]string, len(entries))

	for _, pair := range [][2]string{
		{EnvAccessPrivate, EnvAccessPublic},
		{EnvRefreshPrivate, EnvRefreshPublic},
	} {
		priv, pub, err := EncodePair(bits)
		if err != nil {
			return nil, err
		}
		out[pair[0]] = priv
		out[pair[1]] = pub
	}

	return out, nil
}

// EncodePair generates one RSA pair and returns both halves as base64 PEM
func EncodePair(bits int) (string, string, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate rsa key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})

	return base64.StdEncoding.EncodeToString(privPEM), base64.StdEncoding.EncodeToString(pubPEM), nil
}
