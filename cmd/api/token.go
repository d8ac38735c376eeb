package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/nailerHeum/AjouNICE/internal/config"
	"github.com/nailerHeum/AjouNICE/internal/database"
	"github.com/nailerHeum/AjouNICE/internal/models"
	"github.com/nailerHeum/AjouNICE/internal/repository"
	"github.com/nailerHeum/AjouNICE/internal/service"
)

var errTokenInProduction = errors.New("token command is disabled in production")

// tokenGrant is printed by the token command.
type tokenGrant struct {
	UserIdx   int64     `json:"user_idx"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// runToken mints a bearer token for an existing member so the GraphQL
// endpoint can be exercised locally: api token -user <user_id>.
func runToken(cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	userID := fs.String("user", "", "user_id of the member to issue a token for")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("-user is required")
	}
	if cfg.IsProduction() {
		return errTokenInProduction
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}
	defer sqlDB.Close()

	jwtService := service.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry)
	grant, err := issueToken(context.Background(), repository.NewStores(db).Users,
		service.NewAuthService(jwtService), jwtService, *userID, time.Now())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(grant)
}

func issueToken(ctx context.Context, users repository.Store[models.User], auth service.AuthService, jwtService service.JWTService, userID string, now time.Time) (*tokenGrant, error) {
	user, err := users.FindOne(ctx, repository.Query{
		Where:   []repository.Predicate{repository.Eq("user_id", userID)},
		Project: repository.Select("user_idx", "user_id", "user_nm", "email"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %q not found", userID)
	}

	token, err := auth.IssueToken(service.Identity{
		UserIdx: user.UserIdx,
		UserID:  user.UserID,
		UserNm:  user.UserNm,
		Email:   user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &tokenGrant{
		UserIdx:   user.UserIdx,
		UserID:    user.UserID,
		Token:     token,
		ExpiresAt: now.Add(jwtService.GetExpiry()).UTC().Truncate(time.Second),
	}, nil
}
