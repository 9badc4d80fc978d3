package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bluescreen10/xsession"
	"github.com/bluescreen10/xsession/gormstore"
	"github.com/bluescreen10/xsession/memstore"
	"github.com/bluescreen10/xsession/mongostore"
	"github.com/bluescreen10/xsession/mysqlstore"
	"github.com/bluescreen10/xsession/pgstore"
	"github.com/bluescreen10/xsession/redisstore"
	"github.com/bluescreen10/xsession/sqlitestore"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// backend is an opened store plus what the server needs to maintain and
// release it. cleanup is nil for stores that evict on their own.
type backend struct {
	store   xsession.Store
	cleanup func(interval time.Duration, stop <-chan struct{})
	close   func() error
}

func noClose() error { return nil }

// openStore connects the backend named by cfg.Store.
func openStore(ctx context.Context, cfg Config, logger *slog.Logger) (*backend, error) {
	logger = logger.With(slog.String("store", cfg.Store))

	switch strings.ToLower(cfg.Store) {
	case "memory", "":
		s := memstore.New()
		return &backend{store: s, cleanup: s.PeriodicCleanUp, close: noClose}, nil

	case "redis":
		opts, err := redis.ParseURL(dsn(cfg, "redis://localhost:6379/0"))
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return &backend{store: redisstore.New(rdb), close: rdb.Close}, nil

	case "sqlite":
		s, err := sqlitestore.Open(dsn(cfg, "xsession.db"), sqlitestore.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return &backend{store: s, cleanup: s.PeriodicCleanUp, close: s.Close}, nil

	case "gorm":
		db, err := gorm.Open(sqlite.Open(dsn(cfg, "xsession-gorm.db")), &gorm.Config{
			Logger: gormlogger.Discard,
		})
		if err != nil {
			return nil, fmt.Errorf("open gorm: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		s, err := gormstore.New(db, gormstore.WithLogger(logger))
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		return &backend{store: s, cleanup: s.PeriodicCleanUp, close: sqlDB.Close}, nil

	case "mysql":
		mcfg, err := mysql.ParseDSN(cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		mcfg.ParseTime = true
		connector, err := mysql.NewConnector(mcfg)
		if err != nil {
			return nil, err
		}
		db := sql.OpenDB(connector)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		s, err := mysqlstore.New(db, mysqlstore.WithLogger(logger))
		if err != nil {
			db.Close()
			return nil, err
		}
		return &backend{store: s, cleanup: s.PeriodicCleanUp, close: db.Close}, nil

	case "postgres", "pg":
		pool, err := pgxpool.New(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s, err := pgstore.New(pool, pgstore.WithLogger(logger))
		if err != nil {
			pool.Close()
			return nil, err
		}
		closePool := func() error {
			pool.Close()
			return nil
		}
		return &backend{store: s, cleanup: s.PeriodicCleanUp, close: closePool}, nil

	case "mongo", "mongodb":
		client, err := mongo.Connect(options.Client().ApplyURI(dsn(cfg, "mongodb://localhost:27017")))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		disconnect := func() error {
			return client.Disconnect(context.Background())
		}
		s, err := mongostore.New(client.Database("xsession").Collection("sessions"))
		if err != nil {
			disconnect()
			return nil, err
		}
		return &backend{store: s, close: disconnect}, nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func dsn(cfg Config, fallback string) string {
	if cfg.StoreDSN != "" {
		return cfg.StoreDSN
	}
	return fallback
}
