package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"product-catalog/internal/config"
	"product-catalog/internal/database"
	"product-catalog/internal/domain"
	"product-catalog/internal/logger"
	"product-catalog/internal/repository"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	var names string
	flag.StringVar(&names, "names", "", "comma separated category names to create")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, log, splitNames(names)); err != nil {
		log.Error("Seed failed", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Seed completed successfully")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, names []string) error {
	if len(names) == 0 {
		return errors.New("no category names given: set --names")
	}

	db, err := database.New(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(db.DB(), "migrations", log); err != nil {
		return err
	}

	categories := repository.NewCategoryRepository(db.Pool())
	for _, name := range names {
		category := &domain.Category{ID: uuid.New(), Name: name}

		err := categories.Create(ctx, category)
		switch {
		case errors.Is(err, repository.ErrCategoryAlreadyExists):
			log.Info("Category exists, skipping", zap.String("name", name))
		case err != nil:
			return fmt.Errorf("create category %q: %w", name, err)
		default:
			log.Info("Category created", zap.String("name", name), zap.String("id", category.ID.String()))
		}
	}

	return nil
}

func splitNames(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
