package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hray3182/workoutbot/internal/database"
	"github.com/hray3182/workoutbot/internal/logging"
	"github.com/hray3182/workoutbot/internal/repository"
	"github.com/hray3182/workoutbot/internal/repository/memstore"
	"github.com/hray3182/workoutbot/internal/repository/sqlite"
)

// openStores picks the backend from the scheme of uri and brings its schema
// up to date.
func openStores(ctx context.Context, uri string) (*repository.Stores, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return nil, fmt.Errorf("DATABASE_URI %q has no scheme", uri)
	}
	log := logging.Component("store")

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		db, err := database.New(ctx, uri)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, log); err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Msg("Connected to postgres")
		return repository.NewPostgres(db), nil
	case "sqlite":
		stores, err := sqlite.Open(ctx, rest)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", rest).Msg("Opened sqlite store")
		return stores, nil
	case "memory":
		log.Warn().Msg("Using in-memory store, data is lost on exit")
		return memstore.New().Stores(), nil
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URI scheme %q", scheme)
	}
}
