// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/insurance-backend/internal/config"
	"github.com/carterperez-dev/insurance-backend/internal/core"
	"github.com/carterperez-dev/insurance-backend/internal/middleware"
)

const (
	claimRole         = "role"
	claimTokenVersion = "token_version"
	claimType         = "typ"
	accessTokenType   = "access"
	clockSkew         = 30 * time.Second
)

// JWTManager signs and parses ES256 access tokens. The key id is the
// RFC 7638 thumbprint of the public key, so every replica loading the
// same key pair publishes the same JWKS entry.
type JWTManager struct {
	privateKey jwk.Key
	publicKey  jwk.Key
	publicJWKS jwk.Set
	keyID      string
	config     config.JWTConfig
	now        func() time.Time
}

type JWTOption func(*JWTManager)

// WithTokenClock sets the clock used to validate token time claims.
func WithTokenClock(now func() time.Time) JWTOption {
	return func(m *JWTManager) { m.now = now }
}

func NewJWTManager(cfg config.JWTConfig, opts ...JWTOption) (*JWTManager, error) {
	privateKeyPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	privateKey, err := jwk.ParseKey(privateKeyPEM, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, err := privateKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	keyID, err := thumbprintID(publicKey)
	if err != nil {
		return nil, err
	}

	for _, key := range []jwk.Key{privateKey, publicKey} {
		if err := key.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
			return nil, fmt.Errorf("set algorithm: %w", err)
		}
		if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
			return nil, fmt.Errorf("set key id: %w", err)
		}
	}
	if err := publicKey.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	publicJWKS := jwk.NewSet()
	if err := publicJWKS.AddKey(publicKey); err != nil {
		return nil, fmt.Errorf("add key to set: %w", err)
	}

	m := &JWTManager{
		privateKey: privateKey,
		publicKey:  publicKey,
		publicJWKS: publicJWKS,
		keyID:      keyID,
		config:     cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func thumbprintID(key jwk.Key) (string, error) {
	sum, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sum)[:16], nil
}

// GenerateKeyPair writes a fresh P-256 key pair as PEM files.
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	private, err := jwk.Import(raw)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}
	public, err := private.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	if err := writePEM(privateKeyPath, private, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	//nolint:gosec // G302: a public key is meant to be readable
	if err := writePEM(publicKeyPath, public, 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}
	return nil
}

func writePEM(path string, key jwk.Key, perm os.FileMode) error {
	pem, err := jwk.Pem(key)
	if err != nil {
		return err
	}
	return os.WriteFile(path, pem, perm)
}

func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.config.AccessTokenExpire
}

func (m *JWTManager) KeyID() string {
	return m.keyID
}

// CreateAccessToken signs identity as of now and returns the token with
// its expiry.
func (m *JWTManager) CreateAccessToken(
	identity middleware.AccessTokenClaims,
	now time.Time,
) (string, time.Time, error) {
	expiresAt := now.Add(m.config.AccessTokenExpire)

	token, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(identity.UserID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(expiresAt).
		Claim(claimRole, identity.Role).
		Claim(claimTokenVersion, identity.TokenVersion).
		Claim(claimType, accessTokenType).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.privateKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return string(signed), expiresAt, nil
}

// ParseAccessToken checks signature, issuer, audience, time claims and
// the claim set. Revocation is the caller's concern.
func (m *JWTManager) ParseAccessToken(
	_ context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.ES256(), m.publicKey),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithClock(jwt.ClockFunc(m.now)),
		jwt.WithAcceptableSkew(clockSkew),
	)
	if err != nil {
		if isExpired(err) {
			return nil, fmt.Errorf("parse token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("parse token: %w", core.ErrTokenInvalid)
	}

	claims := &middleware.AccessTokenClaims{}
	var (
		tokenType string
		version   float64
		ok        bool
	)

	switch {
	case token.Get(claimType, &tokenType) != nil || tokenType != accessTokenType:
		return nil, invalidClaim("typ")
	case token.Get(claimRole, &claims.Role) != nil || !middleware.KnownRole(claims.Role):
		return nil, invalidClaim("role")
	case token.Get(claimTokenVersion, &version) != nil:
		return nil, invalidClaim("token_version")
	}

	if claims.UserID, ok = token.Subject(); !ok || claims.UserID == "" {
		return nil, invalidClaim("sub")
	}
	if claims.TokenID, ok = token.JwtID(); !ok || claims.TokenID == "" {
		return nil, invalidClaim("jti")
	}
	claims.TokenVersion = int(version)
	claims.ExpiresAt, _ = token.Expiration()

	return claims, nil
}

func isExpired(err error) bool {
	if errors.Is(err, jwt.TokenExpiredError()) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, `"exp"`) && strings.Contains(msg, "not satisfied")
}

func invalidClaim(name string) error {
	return fmt.Errorf("parse token: bad %s claim: %w", name, core.ErrTokenInvalid)
}

func (m *JWTManager) GetJWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		if err := json.NewEncoder(w).Encode(m.publicJWKS); err != nil {
			core.JSONError(w, err)
		}
	}
}

type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

// CreateRefreshToken mints an opaque refresh token. An empty familyID
// starts a new rotation family.
func (m *JWTManager) CreateRefreshToken(
	familyID string,
	now time.Time,
) (*RefreshTokenData, error) {
	token, err := core.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if familyID == "" {
		familyID = uuid.NewString()
	}

	return &RefreshTokenData{
		Token:     token,
		Hash:      core.HashToken(token),
		ExpiresAt: now.Add(m.config.RefreshTokenExpire),
		FamilyID:  familyID,
	}, nil
}
