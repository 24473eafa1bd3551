package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/AntonStoeckl/endpoint-contracts-go/example/bookstore"
	"github.com/AntonStoeckl/endpoint-contracts-go/example/bookstore/sqlstore"
)

const (
	defaultMaxConnections    = int32(8)
	defaultMinConnections    = int32(2)
	defaultMaxOpenConns      = 50
	defaultMaxIdleConns      = 10
	defaultMaxConnLifetime   = time.Hour
	defaultMaxConnIdleTime   = time.Minute * 5
	defaultHealthCheckPeriod = time.Minute
	defaultConnectTimeout    = time.Second * 5
)

// OpenStore opens the store selected by c.StoreDriver, creates its table and seeds it.
// The returned close function releases the connection.
func OpenStore(ctx context.Context, c Config, logger sqlstore.Logger) (bookstore.Store, func(), error) {
	if c.StoreDriver == DriverMemory {
		return bookstore.NewMemoryStore(bookstore.SeedBooks()...), func() {}, nil
	}

	store, closeDB, err := openSQLStore(ctx, c, logger)
	if err != nil {
		return nil, nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("migrate books table: %w", err)
	}

	if err := store.Seed(ctx, bookstore.SeedBooks()...); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("seed books: %w", err)
	}

	return store, closeDB, nil
}

func openSQLStore(ctx context.Context, c Config, logger sqlstore.Logger) (*sqlstore.Store, func(), error) {
	options := []sqlstore.Option{sqlstore.WithLogger(logger)}

	switch c.StoreDriver {
	case DriverPGX:
		pool, err := PGXPool(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlstore.NewStoreFromPGXPool(pool, options...)

		return store, pool.Close, err

	case DriverSQLDB:
		db, err := SQLDB(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlstore.NewStoreFromSQLDB(db, options...)

		return store, func() { _ = db.Close() }, err

	case DriverSQLX:
		db, err := SQLX(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlstore.NewStoreFromSQLX(db, options...)

		return store, func() { _ = db.Close() }, err

	case DriverSQLite:
		db, err := SQLite(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlstore.NewStoreFromSQLDB(db, append(options, sqlstore.WithDialect(sqlstore.DialectSQLite))...)

		return store, func() { _ = db.Close() }, err

	default:
		return nil, nil, fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.StoreDriver)
	}
}

// PGXPool opens a pgx pool on dsn.
func PGXPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	dbConfig.MaxConns = defaultMaxConnections
	dbConfig.MinConns = defaultMinConnections
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// SQLDB opens a database/sql postgres connection on dsn.
func SQLDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	configurePool(db)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// SQLX opens a sqlx postgres connection on dsn.
func SQLX(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	configurePool(db.DB)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// SQLite opens a SQLite database on dsn.
func SQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite serializes writers; one connection also keeps in-memory databases alive.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)
}
