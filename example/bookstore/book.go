package bookstore

import (
	"context"
	"errors"
)

// Book is the only entity of the book store.
type Book struct {
	Identifier string `json:"identifier"`
	Author     string `json:"author"`
	Category   string `json:"category"`
}

// Store is the persistence boundary of the book store.
// Implementations must be safe for concurrent use; they give no transactional guarantees.
type Store interface {
	HasAuthor(ctx context.Context, author string) (bool, error)
	HasCategory(ctx context.Context, category string) (bool, error)
	HasBook(ctx context.Context, identifier string) (bool, error)
	BooksInCategory(ctx context.Context, category string) ([]Book, error)
	BookCount(ctx context.Context) (int, error)
	Upsert(ctx context.Context, book Book) error
}

// ErrEmptyIdentifier is returned when a book without an identifier is stored.
var ErrEmptyIdentifier = errors.New("book identifier must not be empty")

// SeedBooks returns the books the example starts with.
func SeedBooks() []Book {
	return []Book{
		{Identifier: "The Blazing World", Author: "Margaret Cavendish", Category: "sci-fi"},
		{Identifier: "Pride and Prejudice", Author: "Jane Austen", Category: "romance"},
	}
}
