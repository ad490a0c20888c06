package backend

import (
	"context"
	"fmt"
	"log/slog"

	"travelx/internal/auth"
	"travelx/internal/config"
	"travelx/internal/core"
	"travelx/internal/storage"
	"travelx/internal/store"
	"travelx/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          backendType,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		DataDirectory: appConfig.DataDir,
		AdminUsername: appConfig.AdminUsername,
		AdminPassword: appConfig.AdminPassword,
	}, nil
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := f.bootstrapAdmin(ctx, res.Store, config); err != nil {
		if res.Cleanup != nil {
			_ = res.Cleanup()
		}
		return nil, err
	}
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	if config.SQLiteDBPath == "" {
		return nil, fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Ping:    repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	st, err := memory.NewFromFiles(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Store: st,
		Ping:  func(context.Context) error { return nil },
	}, nil
}

func (f *DefaultFactory) bootstrapAdmin(ctx context.Context, st store.UserWriter, config Config) error {
	if config.AdminUsername == "" || config.AdminPassword == "" {
		return nil
	}
	hash, err := auth.HashPassword(config.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	err = st.UpsertUser(ctx, core.AppUser{
		Username:     config.AdminUsername,
		FullName:     config.AdminUsername,
		Role:         "admin",
		PasswordHash: hash,
		IsActive:     true,
	})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	f.logger.Info("Admin account ready", "username", config.AdminUsername)
	return nil
}
