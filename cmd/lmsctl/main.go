package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/internal/service"
	_ "github.com/noah-isme/lms-api/migrations"
	"github.com/noah-isme/lms-api/pkg/config"
	"github.com/noah-isme/lms-api/pkg/database"
	"github.com/noah-isme/lms-api/pkg/logger"
)

// Go migrations are registered at init; "." keeps goose from requiring a
// migrations directory next to the binary.
const migrationsDir = "."

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	rt := &runtime{out: os.Stdout}
	var db *sqlx.DB
	rt.connect = func(ctx context.Context) error {
		if db != nil {
			return nil
		}
		conn, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		db = conn
		users := repository.NewUserRepository(db)
		userSvc := service.NewUserService(users, nil, logr)
		authSvc := service.NewAuthService(logr, service.AuthConfig{
			Secret:     cfg.JWT.Secret,
			Issuer:     cfg.JWT.Issuer,
			Audience:   cfg.JWT.Audience,
			Expiration: cfg.JWT.Expiration,
		})
		mergeSvc := service.NewMergeService(repository.NewMergeRepository(db), users, nil, nil, logr)

		rt.migrate = func(ctx context.Context, command string, args ...string) error {
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			return goose.RunContext(ctx, command, db.DB, migrationsDir, args...)
		}
		rt.merge = func(ctx context.Context, oldID, newID string) (*dto.MergeResult, error) {
			return mergeSvc.Merge(ctx, oldID, newID)
		}
		rt.remove = userSvc.Delete
		rt.token = func(ctx context.Context, id string) (string, time.Time, error) {
			user, err := userSvc.Get(ctx, id)
			if err != nil {
				return "", time.Time{}, err
			}
			return authSvc.IssueToken(user)
		}
		return nil
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	if err := newRootCmd(rt).ExecuteContext(context.Background()); err != nil {
		logr.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
