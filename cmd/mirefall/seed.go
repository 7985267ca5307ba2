// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package main

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/mirefall/mirefall/internal/config"
	"github.com/mirefall/mirefall/internal/core"
	"github.com/mirefall/mirefall/internal/storage"
)

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a starting character",
		Long: `Create a starting character in the database so a client can log in
to a fresh install. Safe to run repeatedly; an existing character with
the same name is left untouched.`,
		RunE: runSeed,
	}

	cmd.Flags().String("database.url", "", "PostgreSQL URL")
	cmd.Flags().String("name", "Mira", "character name")
	cmd.Flags().String("password", "", "character password (required)")
	cmd.Flags().Int("class", 0, "character class")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required for seeding")
	}

	name, _ := cmd.Flags().GetString("name")
	password, _ := cmd.Flags().GetString("password")
	class, _ := cmd.Flags().GetInt("class")
	if password == "" {
		return oops.Code("CONFIG_INVALID").Errorf("--password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return oops.Code("SEED_FAILED").Wrapf(err, "failed to hash password")
	}

	ctx := cmd.Context()
	store, err := storage.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer store.Close()

	rec := &storage.CharacterRecord{
		ID:           core.NewULID(),
		Name:         name,
		PasswordHash: string(hash),
		Class:        class,
		Level:        1,
		JobLevel:     1,
		HP:           200,
		MP:           100,
		MapID:        1,
		X:            12,
		Y:            34,
	}

	if err := store.SaveCharacter(ctx, rec); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			cmd.Printf("Character %q already exists, skipping seed\n", name)
			return nil
		}
		return oops.Code("SEED_FAILED").With("name", name).Wrap(err)
	}

	// Starter quickbar: the first two melee skills.
	refs := []storage.SkillRef{
		{SkillID: 240, Position: 0},
		{SkillID: 241, Position: 1},
	}
	if err := store.SaveCharacterSkills(ctx, rec.ID, refs); err != nil {
		return oops.Code("SEED_FAILED").With("name", name).Wrap(err)
	}

	cmd.Printf("Character %q created (id %s)\n", name, rec.ID)
	return nil
}
