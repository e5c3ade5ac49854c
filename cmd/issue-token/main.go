// Command issue-token signs an access token for a user id and saves the
// matching profile, for local development without an identity provider.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/classbook-backend/internal/config"
	"github.com/stemsi/classbook-backend/internal/database"
	"github.com/stemsi/classbook-backend/internal/logger"
	"github.com/stemsi/classbook-backend/internal/repository"
	"github.com/stemsi/classbook-backend/internal/service"
)

func main() {
	var userID, name, email string
	var skipProfile bool
	flag.StringVar(&userID, "user", "", "User id to put in the token subject (required)")
	flag.StringVar(&name, "name", "", "Display name")
	flag.StringVar(&email, "email", "", "Email address")
	flag.BoolVar(&skipProfile, "no-profile", false, "Only print the token, do not touch the database")
	flag.Parse()

	if userID == "" {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		flag.Usage()
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if !skipProfile {
		ctx := context.Background()

		// ─── Connect to PostgreSQL ─────────────────────────────────────
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		users := service.NewUserService(repository.NewUserRepository(pool))
		if _, err := users.EnsureProfile(ctx, userID, name, email); err != nil {
			log.Fatal().Err(err).Msg("Failed to save profile")
		}
		log.Info().Str("user_id", userID).Msg("Profile saved")
	}

	token, err := service.NewAuthService(cfg).IssueToken(userID, name, email)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}
	fmt.Println(token)
}
