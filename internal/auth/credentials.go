package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"resumeai.app/resume-ai/internal/store"
)

// CredentialsFile is the on-disk account list:
//
//	credentials:
//	  usernames:
//	    ana:
//	      email: ana@example.com
//	      name: Ana Souza
//	      password: $2a$10$...   # bcrypt hash
//	      subscription_valid_until: 2026-12-31
type CredentialsFile struct {
	Credentials struct {
		Usernames map[string]FileAccount `yaml:"usernames"`
	} `yaml:"credentials"`
}

type FileAccount struct {
	Email                  string `yaml:"email"`
	Name                   string `yaml:"name"`
	Password               string `yaml:"password"`
	SubscriptionValidUntil string `yaml:"subscription_valid_until"`
}

// FileIdentity authenticates against a read-only credentials file. The username is the
// user id; accounts can sign in with either the username or the e-mail address.
type FileIdentity struct {
	accounts map[string]FileAccount
}

func LoadFileIdentity(path string) (*FileIdentity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}
	return ParseFileIdentity(raw)
}

func ParseFileIdentity(raw []byte) (*FileIdentity, error) {
	var file CredentialsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	accounts := file.Credentials.Usernames
	if accounts == nil {
		accounts = map[string]FileAccount{}
	}
	return &FileIdentity{accounts: accounts}, nil
}

func (f *FileIdentity) SignIn(_ context.Context, login, password string) (string, error) {
	username, account, ok := f.lookup(login)
	if !ok || !CheckPasswordHash(password, account.Password) {
		return "", ErrInvalidCredentials
	}
	return username, nil
}

func (f *FileIdentity) CreateUser(context.Context, string, string, string) (string, error) {
	return "", ErrSignupDisabled
}

func (f *FileIdentity) GetProfile(_ context.Context, userID string) (*store.Profile, error) {
	account, ok := f.accounts[userID]
	if !ok {
		return nil, nil
	}
	return &store.Profile{
		UserID:                 userID,
		FullName:               account.Name,
		SubscriptionValidUntil: account.SubscriptionValidUntil,
	}, nil
}

func (f *FileIdentity) lookup(login string) (string, FileAccount, bool) {
	login = strings.TrimSpace(login)
	if account, ok := f.accounts[login]; ok {
		return login, account, true
	}
	for username, account := range f.accounts {
		if account.Email != "" && strings.EqualFold(account.Email, login) {
			return username, account, true
		}
	}
	return "", FileAccount{}, false
}
