package challenge

import (
	"context"
	"errors"
	"fmt"
)

// DefaultThreshold is the hourly attempt count that demands proof.
const DefaultThreshold = 3

var (
	// ErrRequired means the attempt needs a proof and none was supplied.
	ErrRequired = errors.New("challenge required")
	// ErrFailed means a proof was supplied and the verifier rejected it.
	ErrFailed = errors.New("challenge failed")
	// ErrUnavailable wraps verifier transport or decode failures.
	ErrUnavailable = errors.New("challenge verifier unavailable")
)

// Verifier checks a human-verification proof with a third-party service.
type Verifier interface {
	Verify(ctx context.Context, proof, remoteIP string) (bool, error)
}

// VerifierFunc adapts a function to [Verifier].
type VerifierFunc func(ctx context.Context, proof, remoteIP string) (bool, error)

func (f VerifierFunc) Verify(ctx context.Context, proof, remoteIP string) (bool, error) {
	return f(ctx, proof, remoteIP)
}

// Gate demands a proof only when the current count equals Threshold. It keeps
// no memory of earlier successful proofs.
type Gate struct {
	Threshold int64
	Verifier  Verifier
}

// NewGate returns a [Gate]. A non-positive threshold uses [DefaultThreshold].
func NewGate(threshold int, v Verifier) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{Threshold: int64(threshold), Verifier: v}
}

// Required reports whether count demands a proof.
func (g *Gate) Required(count int64) bool {
	return g != nil && count == g.Threshold
}

// Check passes when count does not demand a proof or when proof verifies.
func (g *Gate) Check(ctx context.Context, count int64, proof, remoteIP string) error {
	if !g.Required(count) {
		return nil
	}
	if proof == "" {
		return ErrRequired
	}
	if g.Verifier == nil {
		return fmt.Errorf("%w: no verifier configured", ErrUnavailable)
	}
	ok, err := g.Verifier.Verify(ctx, proof, remoteIP)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrFailed
	}
	return nil
}

// Static accepts exactly one proof value. It is meant for development and
// tests.
type Static struct {
	Accept string
}

func (s Static) Verify(_ context.Context, proof, _ string) (bool, error) {
	return s.Accept != "" && proof == s.Accept, nil
}
