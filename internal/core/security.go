// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidHash = errors.New("invalid password hash")

// ArgonParams are the argon2id cost settings encoded into every hash.
type ArgonParams struct {
	Memory  uint32
	Time    uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

var DefaultArgonParams = ArgonParams{
	Memory:  64 * 1024,
	Time:    1,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

// PasswordHasher hashes and verifies argon2id passwords. Hashes made with
// other parameters still verify and are reported for upgrade.
type PasswordHasher struct {
	params ArgonParams

	dummyOnce sync.Once
	dummy     string
	dummyErr  error
}

func NewPasswordHasher(params ArgonParams) *PasswordHasher {
	return &PasswordHasher{params: params}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Time,
		h.params.Memory,
		h.params.Threads,
		h.params.KeyLen,
	)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against encoded. When the hash was made with
// outdated parameters and the password matches, upgraded holds a fresh
// hash to store.
func (h *PasswordHasher) Verify(
	password, encoded string,
) (ok bool, upgraded string, err error) {
	stored, err := parseHash(encoded)
	if err != nil {
		return false, "", err
	}

	candidate := argon2.IDKey(
		[]byte(password),
		stored.salt,
		stored.params.Time,
		stored.params.Memory,
		stored.params.Threads,
		stored.params.KeyLen,
	)
	if subtle.ConstantTimeCompare(stored.key, candidate) != 1 {
		return false, "", nil
	}

	if stored.params == h.comparable() {
		return true, "", nil
	}

	fresh, hashErr := h.Hash(password)
	if hashErr != nil {
		//nolint:nilerr // password matched; the upgrade is optional
		return true, "", nil
	}
	return true, fresh, nil
}

// VerifyTimingSafe behaves like Verify but still spends a full hash
// computation when encoded is missing, so unknown accounts take as long
// to reject as wrong passwords.
func (h *PasswordHasher) VerifyTimingSafe(
	password string,
	encoded *string,
) (bool, string, error) {
	if encoded != nil && *encoded != "" {
		return h.Verify(password, *encoded)
	}

	h.dummyOnce.Do(func() {
		h.dummy, h.dummyErr = h.Hash("timing-equalizer")
	})
	if h.dummyErr == nil {
		//nolint:errcheck // only the elapsed time matters here
		_, _, _ = h.Verify(password, h.dummy)
	}
	return false, "", nil
}

func (h *PasswordHasher) comparable() ArgonParams {
	p := h.params
	p.SaltLen = 0
	return p
}

type parsedHash struct {
	params ArgonParams
	salt   []byte
	key    []byte
}

func parseHash(encoded string) (*parsedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("%w: version: %w", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}

	var p ArgonParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return nil, fmt.Errorf("%w: params: %w", ErrInvalidHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %w", ErrInvalidHash, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, fmt.Errorf("%w: key: %w", ErrInvalidHash, err)
	}

	//nolint:gosec // G115: argon2 keys are a few dozen bytes
	p.KeyLen = uint32(len(key))

	return &parsedHash{params: p, salt: salt, key: key}, nil
}

func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func GenerateRefreshToken() (string, error) {
	return GenerateSecureToken(32)
}

// HashToken is the at-rest form of a refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func CompareTokenHash(token, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(hash)) == 1
}
