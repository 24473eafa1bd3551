// Package bookstore is a small book store service whose endpoints carry contracts: a
// precondition that maps to 404, async postconditions against the store, a CEL
// postcondition and snapshots compared through OLD.
//
// Run it with cmd/server; the store is picked by STORE_DRIVER (memory, sqlite, pgx, sqldb
// or sqlx) and Swagger UI with the contracts plugin is served at DOCS_PATH.
package bookstore
