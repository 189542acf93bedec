package tokenizer

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/warden/adapters/keys"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "website.com"

var (
	keySetOnce sync.Once
	keySets    [2]*keys.Set
	keySetErr  error
)

// testKeySets returns two independent key sets, generated once per run
func testKeySets(t *testing.T) (*keys.Set, *keys.Set) {
	t.Helper()
	keySetOnce.Do(func() {
		for i := range keySets {
			env, err := keys.Generate(1024)
			if err != nil {
				keySetErr = err
				return
			}
			keySets[i], keySetErr = keys.Load(func(name string) (string, bool) {
				v, ok := env[name]
				return v, ok
			})
			if keySetErr != nil {
				return
			}
		}
	})
	require.NoError(t, keySetErr)
	return keySets[0], keySets[1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestTokenizer(t *testing.T, set *keys.Set, c *clock) ports.Tokenizer {
	t.Helper()
	tok, err := NewJWTTokenizer(set, testIssuer, WithClock(c.Now))
	require.NoError(t, err)
	return tok
}

func TestSignVerifyRoundTrip(t *testing.T) {
	set, _ := testKeySets(t)
	base := time.Unix(1_700_000_000, 0)
	c := &clock{now: base}
	tok := newTestTokenizer(t, set, c)

	for _, role := range []core.Role{core.RoleAccess, core.RoleRefresh} {
		t.Run(role.String(), func(t *testing.T) {
			exp := base.Add(15 * time.Minute)
			signed, err := tok.Sign("user-1", exp, role)
			require.NoError(t, err)
			assert.Len(t, strings.Split(signed, "."), 3)

			claims, ok := tok.Verify(signed, role)
			require.True(t, ok)
			assert.Equal(t, testIssuer, claims.Issuer)
			assert.Equal(t, "user-1", claims.Subject)
			assert.True(t, claims.IssuedAt.Equal(base), "iat %s", claims.IssuedAt)
			assert.True(t, claims.ExpiresAt.Equal(exp), "exp %s", claims.ExpiresAt)
		})
	}
}

func TestHeaderIsRS256JWT(t *testing.T) {
	set, _ := testKeySets(t)
	tok := newTestTokenizer(t, set, &clock{now: time.Now()})

	signed, err := tok.Sign("user-1", time.Now().Add(time.Minute), core.RoleAccess)
	require.NoError(t, err)

	header, err := base64.RawURLEncoding.DecodeString(strings.Split(signed, ".")[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"alg":"RS256","typ":"JWT"}`, string(header))
}

func TestVerifyRejectsCrossRole(t *testing.T) {
	set, _ := testKeySets(t)
	now := time.Now()
	tok := newTestTokenizer(t, set, &clock{now: now})

	access, err := tok.Sign("user-1", now.Add(time.Hour), core.RoleAccess)
	require.NoError(t, err)
	refresh, err := tok.Sign("user-1", now.Add(time.Hour), core.RoleRefresh)
	require.NoError(t, err)

	_, ok := tok.Verify(access, core.RoleRefresh)
	assert.False(t, ok, "access token must not verify as refresh")
	_, ok = tok.Verify(refresh, core.RoleAccess)
	assert.False(t, ok, "refresh token must not verify as access")
}

func TestVerifyRejectsForeignKeyPair(t *testing.T) {
	setA, setB := testKeySets(t)
	now := time.Now()
	c := &clock{now: now}
	tokA := newTestTokenizer(t, setA, c)
	tokB := newTestTokenizer(t, setB, c)

	signed, err := tokA.Sign("user-1", now.Add(time.Hour), core.RoleAccess)
	require.NoError(t, err)

	_, ok := tokB.Verify(signed, core.RoleAccess)
	assert.False(t, ok)
}

func TestVerifyExpiry(t *testing.T) {
	set, _ := testKeySets(t)
	base := time.Unix(1_700_000_000, 0)
	c := &clock{now: base}
	tok := newTestTokenizer(t, set, c)

	exp := base.Add(15 * time.Minute)
	signed, err := tok.Sign("user-1", exp, core.RoleAccess)
	require.NoError(t, err)

	c.Set(exp.Add(-time.Second))
	_, ok := tok.Verify(signed, core.RoleAccess)
	assert.True(t, ok, "token must be valid one second before expiry")

	c.Set(exp)
	_, ok = tok.Verify(signed, core.RoleAccess)
	assert.False(t, ok, "token must be expired at exp exactly")

	c.Set(exp.Add(time.Second))
	_, ok = tok.Verify(signed, core.RoleAccess)
	assert.False(t, ok, "token must be expired after exp")
}

func TestVerifyRejectsTampering(t *testing.T) {
	set, _ := testKeySets(t)
	now := time.Now()
	tok := newTestTokenizer(t, set, &clock{now: now})

	signed, err := tok.Sign("user-1", now.Add(time.Hour), core.RoleAccess)
	require.NoError(t, err)
	parts := strings.Split(signed, ".")

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	forged := strings.Replace(string(payload), "user-1", "user-2", 1)
	require.NotEqual(t, string(payload), forged)

	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(forged)) + "." + parts[2]
	_, ok := tok.Verify(tampered, core.RoleAccess)
	assert.False(t, ok, "modified payload must fail")

	for i := range signed {
		if signed[i] == '.' {
			continue
		}
		b := []byte(signed)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		if _, ok := tok.Verify(string(b), core.RoleAccess); ok {
			// flipping padding bits in the last base64 char of a segment can
			// decode to the same bytes, only fail when bytes really changed
			if decodesEqual(t, signed, string(b)) {
				continue
			}
			t.Fatalf("byte %d altered but token still verified", i)
		}
	}
}

func decodesEqual(t *testing.T, a, b string) bool {
	t.Helper()
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		da, errA := base64.RawURLEncoding.DecodeString(pa[i])
		db, errB := base64.RawURLEncoding.DecodeString(pb[i])
		if errA != nil || errB != nil || string(da) != string(db) {
			return false
		}
	}
	return true
}

func TestVerifyRejectsMalformed(t *testing.T) {
	set, _ := testKeySets(t)
	tok := newTestTokenizer(t, set, &clock{now: time.Now()})

	for _, raw := range []string{
		"",
		"abc",
		"a.b",
		"not.a.jwt",
		"a.b.c.d",
		"eyJhbGciOiJSUzI1NiJ9.!!!.sig",
		base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256"}`)) + "." +
			base64.RawURLEncoding.EncodeToString([]byte(`not json`)) + ".c2ln",
	} {
		claims, ok := tok.Verify(raw, core.RoleAccess)
		assert.False(t, ok, "token %q", raw)
		assert.Nil(t, claims)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	set, _ := testKeySets(t)
	now := time.Now()
	tok := newTestTokenizer(t, set, &clock{now: now})

	claims := jwt.RegisteredClaims{
		Issuer:    testIssuer,
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	require.NoError(t, err)
	_, ok := tok.Verify(hs, core.RoleAccess)
	assert.False(t, ok)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, ok = tok.Verify(none, core.RoleAccess)
	assert.False(t, ok)
}

func TestVerifyRejectsWrongIssuerAndMissingClaims(t *testing.T) {
	set, _ := testKeySets(t)
	now := time.Now()
	tok := newTestTokenizer(t, set, &clock{now: now})
	priv, err := set.PrivateKey(core.RoleAccess)
	require.NoError(t, err)

	sign := func(c jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(priv)
		require.NoError(t, err)
		return s
	}

	wrongIssuer := sign(jwt.RegisteredClaims{
		Issuer: "evil.com", Subject: "user-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	noExpiry := sign(jwt.RegisteredClaims{Issuer: testIssuer, Subject: "user-1"})
	noSubject := sign(jwt.RegisteredClaims{
		Issuer:    testIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})

	for name, raw := range map[string]string{
		"wrong issuer": wrongIssuer,
		"no expiry":    noExpiry,
		"no subject":   noSubject,
	} {
		_, ok := tok.Verify(raw, core.RoleAccess)
		assert.False(t, ok, name)
	}
}

func TestSignRejectsPastExpiry(t *testing.T) {
	set, _ := testKeySets(t)
	now := time.Now()
	tok := newTestTokenizer(t, set, &clock{now: now})

	_, err := tok.Sign("user-1", now, core.RoleAccess)
	assert.ErrorIs(t, err, core.ErrSigning)

	_, err = tok.Sign("user-1", now.Add(-time.Minute), core.RoleRefresh)
	assert.ErrorIs(t, err, core.ErrSigning)
}

func TestSignRejectsExpiryWithinIssueSecond(t *testing.T) {
	set, _ := testKeySets(t)
	issued := time.Now().Truncate(time.Second).Add(100 * time.Millisecond)
	tok := newTestTokenizer(t, set, &clock{now: issued})

	_, err := tok.Sign("user-1", issued.Add(500*time.Millisecond), core.RoleAccess)
	assert.ErrorIs(t, err, core.ErrSigning)

	signed, err := tok.Sign("user-1", issued.Add(time.Second), core.RoleAccess)
	require.NoError(t, err)
	claims, ok := tok.Verify(signed, core.RoleAccess)
	require.True(t, ok)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
}

type brokenKeys struct{}

func (brokenKeys) PrivateKey(role core.Role) (*rsa.PrivateKey, error) {
	return nil, errors.Join(core.ErrKeyMaterial, errors.New("no key"))
}

func (brokenKeys) PublicKey(role core.Role) (*rsa.PublicKey, error) {
	return nil, errors.Join(core.ErrKeyMaterial, errors.New("no key"))
}

func TestNewJWTTokenizerRequiresKeys(t *testing.T) {
	tok, err := NewJWTTokenizer(brokenKeys{}, testIssuer)
	assert.Nil(t, tok)
	assert.ErrorIs(t, err, core.ErrKeyMaterial)
}

func TestVerifyIsSafeForConcurrentUse(t *testing.T) {
	set, _ := testKeySets(t)
	now := time.Now()
	tok := newTestTokenizer(t, set, &clock{now: now})

	signed, err := tok.Sign("user-1", now.Add(time.Hour), core.RoleAccess)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claims, ok := tok.Verify(signed, core.RoleAccess)
			assert.True(t, ok)
			assert.Equal(t, "user-1", claims.Subject)
		}()
	}
	wg.Wait()
}
