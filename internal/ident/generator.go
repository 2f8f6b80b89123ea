// AngelaMos | 2026
// generator.go

package ident

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/carterperez-dev/insurance-backend/internal/core"
)

const (
	PrefixPolicy  = "POL"
	PrefixClaim   = "CLAIM"
	PrefixPayment = "TR"

	// MaxAttempts bounds regeneration after a UNIQUE conflict.
	MaxAttempts = 5
)

// Generator builds human-readable business identifiers of the form
// PREFIX-<last 6 digits of unix millis>-<4 random digits>. The format
// does not guarantee uniqueness; callers insert under a UNIQUE
// constraint and regenerate on conflict.
type Generator struct {
	now    func() time.Time
	digits func(n int64) (int64, error)
}

type Option func(*Generator)

func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithRandom replaces the random source. fn must return a value in [0, n).
func WithRandom(fn func(n int64) (int64, error)) Option {
	return func(g *Generator) {
		g.digits = fn
	}
}

func New(opts ...Option) *Generator {
	g := &Generator{
		now:    time.Now,
		digits: cryptoDigits,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Next(prefix string) (string, error) {
	millis := g.now().UnixMilli() % 1_000_000

	suffix, err := g.digits(10_000)
	if err != nil {
		return "", fmt.Errorf("generate %s identifier: %w", prefix, err)
	}

	return fmt.Sprintf("%s-%06d-%04d", prefix, millis, suffix), nil
}

func (g *Generator) PolicyNumber() (string, error) {
	return g.Next(PrefixPolicy)
}

func (g *Generator) ClaimNumber() (string, error) {
	return g.Next(PrefixClaim)
}

func (g *Generator) TransactionID() (string, error) {
	return g.Next(PrefixPayment)
}

func cryptoDigits(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

// Allocate draws identifiers from next and hands each to insert until
// insert reports it was stored. insert returns false when the identifier
// collided with an existing row.
func Allocate(
	next func() (string, error),
	insert func(id string) (bool, error),
) (string, error) {
	for range MaxAttempts {
		id, err := next()
		if err != nil {
			return "", err
		}

		stored, err := insert(id)
		if err != nil {
			return "", err
		}
		if stored {
			return id, nil
		}
	}

	return "", core.ConflictError("could not allocate a unique identifier")
}
