package sqlstore_test

import (
	"context"
	"database/sql"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/AntonStoeckl/endpoint-contracts-go/example/bookstore"
	"github.com/AntonStoeckl/endpoint-contracts-go/example/bookstore/sqlstore"
	"github.com/AntonStoeckl/endpoint-contracts-go/testutil/testdoubles"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func seededStore(t *testing.T, newStore func(*sql.DB, ...sqlstore.Option) (*sqlstore.Store, error)) *sqlstore.Store {
	t.Helper()

	ctx := context.Background()

	store, err := newStore(openSQLite(t), sqlstore.WithDialect(sqlstore.DialectSQLite), sqlstore.WithTableName("library"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrations are repeatable")
	require.NoError(t, store.Seed(ctx, bookstore.SeedBooks()...))

	return store
}

func fromSQLX(db *sql.DB, options ...sqlstore.Option) (*sqlstore.Store, error) {
	return sqlstore.NewStoreFromSQLX(sqlx.NewDb(db, "sqlite"), options...)
}

// storeContract runs the behavior every bookstore.Store shares.
func storeContract(t *testing.T, store bookstore.Store) {
	t.Helper()

	ctx := context.Background()

	hasAuthor, err := store.HasAuthor(ctx, "Margaret Cavendish")
	require.NoError(t, err)
	assert.True(t, hasAuthor)

	hasCategory, err := store.HasCategory(ctx, "poetry")
	require.NoError(t, err)
	assert.False(t, hasCategory)

	books, err := store.BooksInCategory(ctx, "romance")
	require.NoError(t, err)
	assert.Equal(t, []bookstore.Book{{Identifier: "Pride and Prejudice", Author: "Jane Austen", Category: "romance"}}, books)

	require.NoError(t, store.Upsert(ctx, bookstore.Book{Identifier: "Kindred", Author: "Octavia E. Butler", Category: "sci-fi"}))
	require.NoError(t, store.Upsert(ctx, bookstore.Book{Identifier: "Kindred", Author: "Octavia E. Butler", Category: "time travel"}))
	assert.ErrorIs(t, store.Upsert(ctx, bookstore.Book{}), bookstore.ErrEmptyIdentifier)

	count, err := store.BookCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	hasBook, err := store.HasBook(ctx, "Kindred")
	require.NoError(t, err)
	assert.True(t, hasBook)

	moved, err := store.BooksInCategory(ctx, "time travel")
	require.NoError(t, err)
	assert.Len(t, moved, 1)

	empty, err := store.BooksInCategory(ctx, "poetry")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func Test_Store_SQLite_SQLDB(t *testing.T) {
	storeContract(t, seededStore(t, sqlstore.NewStoreFromSQLDB))
}

func Test_Store_SQLite_SQLX(t *testing.T) {
	storeContract(t, seededStore(t, fromSQLX))
}

func Test_MemoryStore_SharesStoreBehavior(t *testing.T) {
	storeContract(t, bookstore.NewMemoryStore(bookstore.SeedBooks()...))
}

func Test_Store_Postgres_CountQuery(t *testing.T) {
	// arrange
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	logSpy := testdoubles.NewLogHandlerSpy(false)
	store, err := sqlstore.NewStoreFromSQLDB(db, sqlstore.WithLogger(slog.New(logSpy)))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "books" WHERE ("category" = 'romance')`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	// act
	found, err := store.HasCategory(context.Background(), "romance")

	// assert
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, logSpy.HasLog(slog.LevelDebug, "executed sql for: has_category"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Store_Postgres_UpsertInsertsWhenNothingWasUpdated(t *testing.T) {
	// arrange
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store, err := sqlstore.NewStoreFromSQLX(sqlx.NewDb(db, "postgres"))
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "books" SET "author"='Octavia E. Butler',"category"='sci-fi' WHERE ("identifier" = 'Kindred')`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "books" ("identifier", "author", "category") VALUES ('Kindred', 'Octavia E. Butler', 'sci-fi')`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// act
	err = store.Upsert(context.Background(), bookstore.Book{Identifier: "Kindred", Author: "Octavia E. Butler", Category: "sci-fi"})

	// assert
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Store_Postgres_UpsertUpdatesExistingBook(t *testing.T) {
	// arrange
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store, err := sqlstore.NewStoreFromSQLDB(db)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "books"`)).WillReturnResult(sqlmock.NewResult(0, 1))

	// act
	err = store.Upsert(context.Background(), bookstore.Book{Identifier: "Kindred", Author: "Octavia E. Butler", Category: "sci-fi"})

	// assert
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Store_Postgres_QueryFailureIsLogged(t *testing.T) {
	// arrange
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	logSpy := testdoubles.NewLogHandlerSpy(false)
	store, err := sqlstore.NewStoreFromSQLDB(db, sqlstore.WithLogger(slog.New(logSpy)))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "books"`)).WillReturnError(sql.ErrConnDone)

	// act
	_, err = store.BookCount(context.Background())

	// assert
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.True(t, logSpy.HasLog(slog.LevelError, "database query execution failed"))
}

func Test_NewStore_InvalidConfig(t *testing.T) {
	// arrange
	db := openSQLite(t)

	// act
	_, nilErr := sqlstore.NewStoreFromSQLDB(nil)
	_, nilPoolErr := sqlstore.NewStoreFromPGXPool(nil)
	_, emptyTableErr := sqlstore.NewStoreFromSQLDB(db, sqlstore.WithTableName(""))
	_, badTableErr := sqlstore.NewStoreFromSQLDB(db, sqlstore.WithTableName("books; DROP TABLE books"))
	_, dialectErr := sqlstore.NewStoreFromSQLDB(db, sqlstore.WithDialect("oracle"))

	// assert
	assert.ErrorIs(t, nilErr, sqlstore.ErrNilDatabaseConnection)
	assert.ErrorIs(t, nilPoolErr, sqlstore.ErrNilDatabaseConnection)
	assert.ErrorIs(t, emptyTableErr, sqlstore.ErrEmptyBooksTableName)
	assert.ErrorIs(t, badTableErr, sqlstore.ErrInvalidTableName)
	assert.ErrorIs(t, dialectErr, sqlstore.ErrUnsupportedDialect)
}
