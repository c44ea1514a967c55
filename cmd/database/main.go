package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lealre/natours-backend/internal/auth"
	"github.com/lealre/natours-backend/internal/config"
	"github.com/lealre/natours-backend/internal/logx"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/services/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	indexes := flag.Bool("indexes", false, "create indexes in the database if they do not exist")
	resetIndexes := flag.Bool("reset", false, "Delete the indexes and recreate it")
	deleteIndexes := flag.Bool("delete", false, "Delete the indexes")
	superuser := flag.Bool("superuser", false, "create an admin user if it does not exist")
	importDir := flag.String("import", "", "import tours, users and reviews from the JSON files in this directory")
	clearData := flag.Bool("clear", false, "delete every tour, user and review")

	flag.Parse()

	os.Exit(run(command{
		indexes:       *indexes,
		resetIndexes:  *resetIndexes,
		deleteIndexes: *deleteIndexes,
		superuser:     *superuser,
		importDir:     *importDir,
		clearData:     *clearData,
	}))
}

type command struct {
	indexes       bool
	resetIndexes  bool
	deleteIndexes bool
	superuser     bool
	importDir     string
	clearData     bool
}

// run executes cmd and returns the exit code after the client is disconnected.
func run(cmd command) int {
	cfg, err := config.LoadDatabase()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return 1
	}

	logger := logx.New(cfg.LogLevel, cfg.LogFormat)
	ctx := logx.WithLogger(context.Background(), logger)

	client, err := mongodb.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to MongoDB")
		return 1
	}
	defer client.Disconnect(ctx)

	db := mongodb.NewDB(client, cfg.MongoDB)
	database := db.Database()

	switch {
	case cmd.indexes:
		if cmd.deleteIndexes {
			if err := mongodb.DeleteAllIndexes(ctx, database); err != nil {
				logger.Error().Err(err).Msg("failed to delete indexes")
				return 1
			}
			logger.Info().Msg("all indexes deleted")
			return 0
		}

		if err := mongodb.CreateAllIndexes(ctx, database, cmd.resetIndexes); err != nil {
			logger.Error().Err(err).Msg("failed to create indexes")
			return 1
		}
		logger.Info().Msg("indexes command ran successfully")

	case cmd.superuser:
		if err := createSuperuser(ctx, db, cfg, logger); err != nil {
			logger.Error().Err(err).Msg("failed to create superuser")
			return 1
		}
		logger.Info().Msg("superuser command ran successfully")

	case cmd.importDir != "":
		if err := importDevData(ctx, db, cmd.importDir, cfg); err != nil {
			logger.Error().Err(err).Msg("failed to import data")
			return 1
		}
		logger.Info().Str("dir", cmd.importDir).Msg("data imported")

	case cmd.clearData:
		if err := clearDevData(ctx, db); err != nil {
			logger.Error().Err(err).Msg("failed to delete data")
			return 1
		}
		logger.Info().Msg("data deleted")

	default:
		fmt.Println("No valid command specified.")
		flag.Usage()
		return 2
	}

	return 0
}

func createSuperuser(ctx context.Context, db *mongodb.DB, cfg config.DatabaseConfig, logger zerolog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.SuperuserEmail))
	if !users.IsValidEmail(email) {
		return errors.New("email format is not valid")
	}
	if len(cfg.SuperuserPassword) < 8 {
		return errors.New("SUPERUSER_PASSWORD must have at least 8 characters")
	}

	_, err := db.GetUserByEmail(ctx, email)
	if err == nil {
		logger.Info().Str("email", email).Msg("user already exists, skipping creation")
		return nil
	}
	if !errors.Is(err, mongodb.ErrRecordNotFound) {
		return fmt.Errorf("failed to check if user exists: %w", err)
	}

	passwordHash, err := auth.HashPassword(cfg.SuperuserPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := db.AddUser(ctx, mongodb.UserDb{
		Name:         cfg.SuperuserName,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         string(auth.RoleAdmin),
	})
	if err != nil {
		return fmt.Errorf("failed to add user to database: %w", err)
	}

	logger.Info().Str("id", created.Id).Str("email", email).Msg("superuser created")
	return nil
}
