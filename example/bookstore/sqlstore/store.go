// Package sqlstore implements bookstore.Store on PostgreSQL (pgx, database/sql or sqlx)
// and SQLite, with SQL built by goqu.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/endpoint-contracts-go/example/bookstore"
	"github.com/AntonStoeckl/endpoint-contracts-go/example/bookstore/sqlstore/internal/adapters"
)

const (
	defaultBooksTableName  = "books"
	colIdentifier          = "identifier"
	colAuthor              = "author"
	colCategory            = "category"
	logMsgBuildQueryFailed = "failed to build query"
	logMsgDBQueryFailed    = "database query execution failed"
	logMsgDBExecFailed     = "database execution failed"
	logMsgSQLExecuted      = "executed sql for: "
	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrDurationMS      = "duration_ms"
	logAttrRowsAffected    = "rows_affected"
)

// Dialects understood by the store.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

var (
	// ErrNilDatabaseConnection is returned when a constructor gets a nil connection.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	// ErrEmptyBooksTableName is returned by WithTableName("").
	ErrEmptyBooksTableName = errors.New("books table name must not be empty")
	// ErrInvalidTableName is returned for table names that are not plain SQL identifiers.
	ErrInvalidTableName = errors.New("books table name must be a plain identifier")
	// ErrUnsupportedDialect is returned by WithDialect for unknown dialects.
	ErrUnsupportedDialect = errors.New("unsupported sql dialect")
)

// Logger receives the executed SQL at debug level and failures at error level.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Store is a bookstore.Store on a SQL database.
type Store struct {
	db             adapters.DBAdapter
	dialect        goqu.DialectWrapper
	booksTableName string
	logger         Logger
}

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithTableName sets the books table name.
func WithTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return ErrEmptyBooksTableName
		}
		if !isIdentifier(tableName) {
			return fmt.Errorf("%w: %q", ErrInvalidTableName, tableName)
		}

		s.booksTableName = tableName

		return nil
	}
}

// WithDialect sets the SQL dialect. The default is DialectPostgres.
func WithDialect(dialect string) Option {
	return func(s *Store) error {
		switch dialect {
		case DialectPostgres, DialectSQLite:
			s.dialect = goqu.Dialect(dialect)

			return nil
		default:
			return fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
		}
	}
}

// WithLogger sets the logger for the Store.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// NewStoreFromPGXPool creates a Store on a pgx pool.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options)
}

// NewStoreFromSQLDB creates a Store on a database/sql connection.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options)
}

// NewStoreFromSQLX creates a Store on a sqlx connection.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options)
}

func newStore(db adapters.DBAdapter, options []Option) (*Store, error) {
	s := &Store{
		db:             db,
		dialect:        goqu.Dialect(DialectPostgres),
		booksTableName: defaultBooksTableName,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Migrate creates the books table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	// goqu has no DDL builder; the table name is validated by WithTableName.
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s TEXT PRIMARY KEY, %s TEXT NOT NULL, %s TEXT NOT NULL)`,
		s.booksTableName, colIdentifier, colAuthor, colCategory,
	)

	_, err := s.exec(ctx, "migrate", ddl)

	return err
}

// Seed upserts books.
func (s *Store) Seed(ctx context.Context, books ...bookstore.Book) error {
	for _, b := range books {
		if err := s.Upsert(ctx, b); err != nil {
			return err
		}
	}

	return nil
}

// HasAuthor implements bookstore.Store.
func (s *Store) HasAuthor(ctx context.Context, author string) (bool, error) {
	return s.exists(ctx, "has_author", goqu.C(colAuthor).Eq(author))
}

// HasCategory implements bookstore.Store.
func (s *Store) HasCategory(ctx context.Context, category string) (bool, error) {
	return s.exists(ctx, "has_category", goqu.C(colCategory).Eq(category))
}

// HasBook implements bookstore.Store.
func (s *Store) HasBook(ctx context.Context, identifier string) (bool, error) {
	return s.exists(ctx, "has_book", goqu.C(colIdentifier).Eq(identifier))
}

// BookCount implements bookstore.Store.
func (s *Store) BookCount(ctx context.Context) (int, error) {
	return s.count(ctx, "book_count", s.dialect.From(s.booksTableName).Select(goqu.COUNT(goqu.Star())))
}

// BooksInCategory implements bookstore.Store. Books are ordered by identifier.
func (s *Store) BooksInCategory(ctx context.Context, category string) ([]bookstore.Book, error) {
	query, _, err := s.dialect.
		From(s.booksTableName).
		Select(colIdentifier, colAuthor, colCategory).
		Where(goqu.C(colCategory).Eq(category)).
		Order(goqu.C(colIdentifier).Asc()).
		ToSQL()
	if err != nil {
		s.logError(logMsgBuildQueryFailed, err)
		return nil, fmt.Errorf("build books_in_category query: %w", err)
	}

	rows, err := s.query(ctx, "books_in_category", query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	books := make([]bookstore.Book, 0)
	for rows.Next() {
		var b bookstore.Book
		if err := rows.Scan(&b.Identifier, &b.Author, &b.Category); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}

	return books, nil
}

// Upsert implements bookstore.Store. It updates the book and inserts it when no row matched,
// which works the same on every dialect. Two concurrent inserts of the same new book make one
// of them fail on the primary key.
func (s *Store) Upsert(ctx context.Context, book bookstore.Book) error {
	if book.Identifier == "" {
		return bookstore.ErrEmptyIdentifier
	}

	update, _, err := s.dialect.
		Update(s.booksTableName).
		Set(goqu.Record{colAuthor: book.Author, colCategory: book.Category}).
		Where(goqu.C(colIdentifier).Eq(book.Identifier)).
		ToSQL()
	if err != nil {
		s.logError(logMsgBuildQueryFailed, err)
		return fmt.Errorf("build update statement: %w", err)
	}

	result, err := s.exec(ctx, "upsert_book", update)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected > 0 {
		return nil
	}

	insert, _, err := s.dialect.
		Insert(s.booksTableName).
		Cols(colIdentifier, colAuthor, colCategory).
		Vals(goqu.Vals{book.Identifier, book.Author, book.Category}).
		ToSQL()
	if err != nil {
		s.logError(logMsgBuildQueryFailed, err)
		return fmt.Errorf("build insert statement: %w", err)
	}

	_, err = s.exec(ctx, "upsert_book", insert)

	return err
}

func (s *Store) exists(ctx context.Context, action string, where exp.Expression) (bool, error) {
	n, err := s.count(ctx, action, s.dialect.From(s.booksTableName).Select(goqu.COUNT(goqu.Star())).Where(where))
	return n > 0, err
}

func (s *Store) count(ctx context.Context, action string, ds *goqu.SelectDataset) (int, error) {
	query, _, err := ds.ToSQL()
	if err != nil {
		s.logError(logMsgBuildQueryFailed, err)
		return 0, fmt.Errorf("build %s query: %w", action, err)
	}

	rows, err := s.query(ctx, action, query)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan %s: %w", action, err)
		}
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate %s: %w", action, err)
	}

	return n, nil
}

func (s *Store) query(ctx context.Context, action, query string) (adapters.DBRows, error) {
	start := time.Now()

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.logError(logMsgDBQueryFailed, err, logAttrQuery, query)
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	s.logDebug(logMsgSQLExecuted+action, logAttrQuery, query, logAttrDurationMS, time.Since(start).Milliseconds())

	return rows, nil
}

func (s *Store) exec(ctx context.Context, action, statement string) (adapters.DBResult, error) {
	start := time.Now()

	result, err := s.db.Exec(ctx, statement)
	if err != nil {
		s.logError(logMsgDBExecFailed, err, logAttrQuery, statement)
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	if s.logger != nil {
		affected, _ := result.RowsAffected()
		s.logger.Debug(logMsgSQLExecuted+action,
			logAttrQuery, statement,
			logAttrRowsAffected, affected,
			logAttrDurationMS, time.Since(start).Milliseconds())
	}

	return result, nil
}

func (s *Store) logDebug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Store) logError(msg string, err error, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, append([]any{logAttrError, err.Error()}, args...)...)
	}
}

func isIdentifier(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}

	return name != ""
}
