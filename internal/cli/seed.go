package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"gopkg.in/yaml.v3"

	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
)

type seedFile struct {
	Quizzes []domain.Quiz `yaml:"quizzes"`
	Users   []domain.User `yaml:"users"`
}

// NewSeedCmd loads quizzes and users from a YAML file into Postgres.
// Quizzes are validated against the authoring invariants before insert.
func NewSeedCmd(configPath *string) *cobra.Command {
	var seedPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed quizzes and users into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, seedPath)
		},
	}
	cmd.Flags().StringVar(&seedPath, "file", "config/seed.yaml", "path to YAML seed data")
	return cmd
}

func runSeed(ctx context.Context, configPath, seedPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return err
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	for _, quiz := range seed.Quizzes {
		if err := quiz.Validate(); err != nil {
			return err
		}
		doc, err := json.Marshal(quiz)
		if err != nil {
			return fmt.Errorf("marshal quiz %s: %w", quiz.ID, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO quizzes (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`,
			quiz.ID, string(doc)); err != nil {
			return fmt.Errorf("insert quiz %s: %w", quiz.ID, err)
		}
	}

	for _, user := range seed.Users {
		if user.ID == "" {
			return fmt.Errorf("seed user with empty id")
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO users (id, name) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name`,
			user.ID, user.Name); err != nil {
			return fmt.Errorf("insert user %s: %w", user.ID, err)
		}
	}

	log.Printf("seeded %d quizzes, %d users", len(seed.Quizzes), len(seed.Users))
	return nil
}
