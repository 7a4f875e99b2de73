package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resumeai.app/resume-ai/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSignupDisabled     = errors.New("signup disabled")
	ErrEmailTaken         = store.ErrEmailTaken
)

// Identity is the account backend: who the user is and what their profile says.
type Identity interface {
	SignIn(ctx context.Context, email, password string) (userID string, err error)
	CreateUser(ctx context.Context, email, password, fullName string) (userID string, err error)
	// GetProfile returns (nil, nil) when the user has no profile.
	GetProfile(ctx context.Context, userID string) (*store.Profile, error)
}

type accountStore interface {
	CreateUserWithProfile(ctx context.Context, email, passwordHash, fullName, validUntil string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	GetProfile(ctx context.Context, userID string) (*store.Profile, error)
}

// StoreIdentity keeps accounts in the application database. New accounts get a trial
// subscription of trialDays starting today.
type StoreIdentity struct {
	store     accountStore
	trialDays int
	now       func() time.Time
}

func NewStoreIdentity(s accountStore, trialDays int) *StoreIdentity {
	return &StoreIdentity{store: s, trialDays: trialDays, now: time.Now}
}

func (i *StoreIdentity) SignIn(ctx context.Context, email, password string) (string, error) {
	user, err := i.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !CheckPasswordHash(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return user.ID, nil
}

func (i *StoreIdentity) CreateUser(ctx context.Context, email, password, fullName string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	expiry := i.now().AddDate(0, 0, i.trialDays).Format(DateLayout)
	user, err := i.store.CreateUserWithProfile(ctx, email, hash, fullName, expiry)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (i *StoreIdentity) GetProfile(ctx context.Context, userID string) (*store.Profile, error) {
	return i.store.GetProfile(ctx, userID)
}
