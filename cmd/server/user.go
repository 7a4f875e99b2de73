package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"resumeai.app/resume-ai/internal/auth"
	"resumeai.app/resume-ai/internal/config"
	"resumeai.app/resume-ai/internal/store"
)

type accountAdmin interface {
	CreateUserWithProfile(ctx context.Context, email, passwordHash, fullName, validUntil string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	UpdateSubscription(ctx context.Context, userID, validUntil string) error
}

func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts in the application database",
	}
	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserExtendCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account with a subscription",
		Long: `Create an account and its profile. The subscription runs from today for
--days days (TRIAL_DAYS when omitted).

Examples:
  resume-ai user add --email ana@example.com --password s3cret --name "Ana Souza"
  resume-ai user add --email bo@example.com --password s3cret --name Bo --days 30`,
		RunE: runUserAdd,
	}
	cmd.Flags().String("email", "", "Account e-mail")
	cmd.Flags().String("password", "", "Account password")
	cmd.Flags().String("name", "", "Full name shown in the app")
	cmd.Flags().Int("days", -1, "Subscription length in days (default TRIAL_DAYS)")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newUserExtendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Set the subscription expiry date of an account",
		RunE:  runUserExtend,
	}
	cmd.Flags().String("email", "", "Account e-mail")
	cmd.Flags().String("until", "", "Last valid day, YYYY-MM-DD")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("until")
	return cmd
}

func runUserAdd(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	name, _ := cmd.Flags().GetString("name")
	days, _ := cmd.Flags().GetInt("days")

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if days < 0 {
		days = cfg.TrialDays
	}

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbStore.Close()

	user, validUntil, err := addUser(cmd.Context(), dbStore, email, password, name, days, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s), subscription valid until %s\n", user.Email, user.ID, validUntil)
	return nil
}

func runUserExtend(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	until, _ := cmd.Flags().GetString("until")

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbStore.Close()

	if err := extendUser(cmd.Context(), dbStore, email, until); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "subscription of %s valid until %s\n", email, until)
	return nil
}

func addUser(ctx context.Context, s accountAdmin, email, password, name string, days int, now time.Time) (*store.User, string, error) {
	if len(password) < 6 {
		return nil, "", fmt.Errorf("password must be at least 6 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	validUntil := now.AddDate(0, 0, days).Format(auth.DateLayout)
	user, err := s.CreateUserWithProfile(ctx, email, hash, name, validUntil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create user %s: %w", email, err)
	}
	return user, validUntil, nil
}

func extendUser(ctx context.Context, s accountAdmin, email, until string) error {
	if _, err := time.Parse(auth.DateLayout, until); err != nil {
		return fmt.Errorf("invalid --until %q, want YYYY-MM-DD", until)
	}
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no account with e-mail %s", email)
	}
	return s.UpdateSubscription(ctx, user.ID, until)
}
