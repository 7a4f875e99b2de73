package auth

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"resumeai.app/resume-ai/internal/store"
)

// DateLayout is the calendar-date format used for subscription expiry.
const DateLayout = "2006-01-02"

type Status int

const (
	StatusUnauthenticated Status = iota
	StatusNoProfile
	StatusExpired
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusNoProfile:
		return "no_profile"
	case StatusExpired:
		return "expired"
	case StatusActive:
		return "active"
	default:
		return "unauthenticated"
	}
}

type Decision struct {
	Status  Status
	Profile *store.Profile
}

type profileSource interface {
	GetProfile(ctx context.Context, userID string) (*store.Profile, error)
}

// Gate decides on every request whether the user may use the application.
type Gate struct {
	profiles profileSource
	logger   *zap.Logger
	now      func() time.Time
}

func NewGate(profiles profileSource, logger *zap.Logger) *Gate {
	return &Gate{profiles: profiles, logger: logger, now: time.Now}
}

// Check classifies an authenticated user id. A failed profile lookup is not retried.
func (g *Gate) Check(ctx context.Context, userID string) Decision {
	if userID == "" {
		return Decision{Status: StatusUnauthenticated}
	}
	profile, err := g.profiles.GetProfile(ctx, userID)
	if err != nil {
		g.logger.Warn("profile lookup failed", zap.String("user_id", userID), zap.Error(err))
		return Decision{Status: StatusNoProfile}
	}
	if profile == nil {
		return Decision{Status: StatusNoProfile}
	}
	if !IsSubscriptionActive(profile, g.now()) {
		return Decision{Status: StatusExpired, Profile: profile}
	}
	return Decision{Status: StatusActive, Profile: profile}
}

// IsSubscriptionActive reports whether today (calendar date in today's location) is on or
// before the profile's expiry date. Missing or malformed dates count as expired.
func IsSubscriptionActive(profile *store.Profile, today time.Time) bool {
	if profile == nil {
		return false
	}
	y, m, d, ok := parseValidUntil(profile.SubscriptionValidUntil)
	if !ok {
		return false
	}
	validUntil := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ty, tm, td := today.Date()
	todayDate := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return !todayDate.After(validUntil)
}

func parseValidUntil(raw string) (int, time.Month, int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, 0, false
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		y, m, d := t.Date()
		return y, m, d, true
	}
	// Timestamps keep the date as written, ignoring time of day and offset.
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		y, m, d := t.Date()
		return y, m, d, true
	}
	return 0, 0, 0, false
}
