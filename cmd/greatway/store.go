package main

import (
	"context"
	"fmt"

	"github.com/greatway/greatway/internal/core/ports"
	"github.com/greatway/greatway/internal/infrastructure/config"
	mongodb "github.com/greatway/greatway/internal/infrastructure/db/mongo"
	"github.com/greatway/greatway/internal/infrastructure/db/postgres"
	"github.com/greatway/greatway/internal/infrastructure/db/sqlite"
)

// openStore opens the credential store selected by STORE_DRIVER.
func openStore(ctx context.Context, sc *config.StoreConfig) (ports.CredentialStore, error) {
	switch sc.Driver {
	case config.DriverPostgres:
		store, err := postgres.Connect(ctx, postgres.Config{
			DSN:            sc.PostgresDSN,
			MaxConns:       int32(sc.MaxConns),
			AcquireTimeout: sc.AcquireTimeout,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.DriverMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      sc.MongoURI,
			Database: sc.MongoDB,
			MaxConns: uint64(sc.MaxConns),
			Timeout:  sc.AcquireTimeout,
		})
		if err != nil {
			return nil, err
		}
		store, err := mongodb.NewCredentialStore(ctx, client, db)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return store, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, sqlite.Config{
			Path:           sc.SQLitePath,
			MaxConns:       sc.MaxConns,
			AcquireTimeout: sc.AcquireTimeout,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", sc.Driver)
}
