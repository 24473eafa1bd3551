package bookstore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/endpoint-contracts-go/example/bookstore"
)

func Test_MemoryStore_Upsert_InsertsAndUpdates(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := bookstore.NewMemoryStore(bookstore.SeedBooks()...)

	// act
	insertErr := store.Upsert(ctx, bookstore.Book{Identifier: "Kindred", Author: "Octavia E. Butler", Category: "sci-fi"})
	updateErr := store.Upsert(ctx, bookstore.Book{Identifier: "Pride and Prejudice", Author: "Jane Austen", Category: "classic"})
	emptyErr := store.Upsert(ctx, bookstore.Book{Author: "Nobody"})

	// assert
	require.NoError(t, insertErr)
	require.NoError(t, updateErr)
	assert.ErrorIs(t, emptyErr, bookstore.ErrEmptyIdentifier)

	count, err := store.BookCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	sciFi, err := store.BooksInCategory(ctx, "sci-fi")
	require.NoError(t, err)
	assert.Len(t, sciFi, 2)

	romance, err := store.HasCategory(ctx, "romance")
	require.NoError(t, err)
	assert.False(t, romance)
}

func Test_MemoryStore_BooksInCategory_UnknownCategoryIsEmpty(t *testing.T) {
	// arrange
	store := bookstore.NewMemoryStore()

	// act
	books, err := store.BooksInCategory(context.Background(), "poetry")

	// assert
	require.NoError(t, err)
	assert.NotNil(t, books)
	assert.Empty(t, books)
}

func Test_MemoryStore_ConcurrentUpserts(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := bookstore.NewMemoryStore()
	identifiers := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	// act
	var wg sync.WaitGroup
	for _, id := range identifiers {
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = store.Upsert(ctx, bookstore.Book{Identifier: id, Author: "anonymous", Category: "misc"})
			}()
		}
	}
	wg.Wait()

	// assert
	count, err := store.BookCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(identifiers), count)
}
