package bookstore

import (
	"context"
	"sync"
)

// MemoryStore keeps the books in memory, in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	books []Book
}

// NewMemoryStore creates a MemoryStore holding books.
func NewMemoryStore(books ...Book) *MemoryStore {
	return &MemoryStore{books: append([]Book(nil), books...)}
}

// HasAuthor implements Store.
func (s *MemoryStore) HasAuthor(_ context.Context, author string) (bool, error) {
	return s.exists(func(b Book) bool { return b.Author == author }), nil
}

// HasCategory implements Store.
func (s *MemoryStore) HasCategory(_ context.Context, category string) (bool, error) {
	return s.exists(func(b Book) bool { return b.Category == category }), nil
}

// HasBook implements Store.
func (s *MemoryStore) HasBook(_ context.Context, identifier string) (bool, error) {
	return s.exists(func(b Book) bool { return b.Identifier == identifier }), nil
}

// BooksInCategory implements Store.
func (s *MemoryStore) BooksInCategory(_ context.Context, category string) ([]Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Book, 0)
	for _, b := range s.books {
		if b.Category == category {
			result = append(result, b)
		}
	}

	return result, nil
}

// BookCount implements Store.
func (s *MemoryStore) BookCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.books), nil
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(_ context.Context, book Book) error {
	if book.Identifier == "" {
		return ErrEmptyIdentifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.books {
		if s.books[i].Identifier == book.Identifier {
			s.books[i].Author = book.Author
			s.books[i].Category = book.Category
			return nil
		}
	}

	s.books = append(s.books, book)

	return nil
}

func (s *MemoryStore) exists(match func(Book) bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.books {
		if match(b) {
			return true
		}
	}

	return false
}
