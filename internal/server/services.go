package server

import (
	"context"
	"fmt"

	"github.com/quillbox/quillbox/internal/sync"
)

type Services struct {
	Sync *sync.Service
}

func NewServices(config *Config) (*Services, error) {
	syncSvc, err := sync.NewService(&sync.ServiceConfig{
		ContentDir:  config.Data.ContentDir,
		DBPath:      config.ManifestDBPath(),
		LockPath:    config.CommitLockPath(),
		FrontMatter: config.Data.FrontMatter,
	})
	if err != nil {
		return nil, fmt.Errorf("create sync service: %w", err)
	}

	return &Services{
		Sync: syncSvc,
	}, nil
}

func (s *Services) Start(ctx context.Context) error {
	if err := s.Sync.Start(ctx); err != nil {
		return fmt.Errorf("start sync service: %w", err)
	}
	return nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	if err := s.Sync.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop sync service: %w", err)
	}
	return nil
}
