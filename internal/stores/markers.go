package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/marketAuth/internal/kv"
)

// MarkerKind separates verification and reset markers.
type MarkerKind string

const (
	MarkerVerify MarkerKind = "verify"
	MarkerReset  MarkerKind = "reset"
)

var ErrMarkerUnavailable = errors.New("send marker backend unavailable")

// SendMarkers records when an email was last dispatched for an identity.
// Each marker lives exactly one cooldown.
type SendMarkers struct {
	cache  kv.Cache
	prefix string
}

func NewSendMarkers(cache kv.Cache, prefix string) *SendMarkers {
	if prefix == "" {
		prefix = "ls:"
	}
	return &SendMarkers{
		cache:  cache,
		prefix: prefix,
	}
}

// Mark stores sentAt for identity with a TTL of cooldown.
func (s *SendMarkers) Mark(ctx context.Context, kind MarkerKind, identity string, sentAt time.Time, cooldown time.Duration) error {
	if s == nil || s.cache == nil {
		return ErrMarkerUnavailable
	}
	value := sentAt.UTC().Format(time.RFC3339Nano)
	if err := s.cache.Set(ctx, s.key(kind, identity), value, cooldown); err != nil {
		return fmt.Errorf("%w: %v", ErrMarkerUnavailable, err)
	}
	return nil
}

// LastSent returns the recorded send instant, or ok=false when the marker has
// expired or was never written.
func (s *SendMarkers) LastSent(ctx context.Context, kind MarkerKind, identity string) (time.Time, bool, error) {
	if s == nil || s.cache == nil {
		return time.Time{}, false, ErrMarkerUnavailable
	}
	raw, ok, err := s.cache.Get(ctx, s.key(kind, identity))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrMarkerUnavailable, err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	sentAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// Unreadable markers are treated as absent.
		return time.Time{}, false, nil
	}
	return sentAt.UTC(), true, nil
}

// Remaining returns how much of cooldown is left at now. Zero means the
// cooldown has elapsed or no marker exists.
func (s *SendMarkers) Remaining(ctx context.Context, kind MarkerKind, identity string, cooldown time.Duration, now time.Time) (time.Duration, time.Time, error) {
	sentAt, ok, err := s.LastSent(ctx, kind, identity)
	if err != nil || !ok {
		return 0, time.Time{}, err
	}
	left := sentAt.Add(cooldown).Sub(now)
	if left <= 0 {
		return 0, sentAt, nil
	}
	return left, sentAt, nil
}

// Clear drops the marker for identity.
func (s *SendMarkers) Clear(ctx context.Context, kind MarkerKind, identity string) error {
	if s == nil || s.cache == nil {
		return nil
	}
	if _, err := s.cache.Delete(ctx, s.key(kind, identity)); err != nil {
		return fmt.Errorf("%w: %v", ErrMarkerUnavailable, err)
	}
	return nil
}

func (s *SendMarkers) key(kind MarkerKind, identity string) string {
	return s.prefix + string(kind) + ":" + identity
}
