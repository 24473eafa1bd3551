package bookstore

import (
	"context"
	"errors"
	"net/http"
	"reflect"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
	"github.com/AntonStoeckl/endpoint-contracts-go/contracts/celcond"
	"github.com/AntonStoeckl/endpoint-contracts-go/routing"
)

// Snapshot names of upsert_book.
const (
	SnapshotHasBook   = "has_book"
	SnapshotBookCount = "book_count"
)

// Contract descriptions, as they appear in the schema and in violation errors.
const (
	DescCategoryMustExist = "The category must exist."
	DescAuthorsMustExist  = "One or more authors of the resulting books do not exist."
	DescSameCategory      = "Every resulting book belongs to the requested category."
	DescBookStored        = "The book is stored after the upsert."
	DescBookCount         = "The book count grows by one for new books and stays the same otherwise."
)

// ErrNilStore is returned by NewService without a store.
var ErrNilStore = errors.New("bookstore: store must not be nil")

// Service exposes the book store over HTTP with contracts on its endpoints.
type Service struct {
	store    Store
	checker  *contracts.Checker
	compiler *celcond.Compiler
}

// NewService creates a Service. A nil checker enforces every contract without observability.
func NewService(store Store, checker *contracts.Checker) (*Service, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	if checker == nil {
		var err error
		if checker, err = contracts.NewChecker(); err != nil {
			return nil, err
		}
	}

	compiler, err := celcond.NewCompiler()
	if err != nil {
		return nil, err
	}

	return &Service{store: store, checker: checker, compiler: compiler}, nil
}

// Register mounts every endpoint on router.
func (s *Service) Register(router *routing.Router) error {
	booksInCategory, err := s.BooksInCategory()
	if err != nil {
		return err
	}

	upsertBook, err := s.UpsertBook()
	if err != nil {
		return err
	}

	routes := []struct {
		method  string
		path    string
		ep      contracts.Endpoint
		summary string
	}{
		{http.MethodGet, "/has_author", s.HasAuthor(), "Check if the author exists"},
		{http.MethodGet, "/has_category", s.HasCategory(), "Check if the category exists"},
		{http.MethodGet, "/books_in_category", booksInCategory, "List the books of a category"},
		{http.MethodGet, "/has_book", s.HasBook(), "Check if the book exists"},
		{http.MethodGet, "/book_count", s.BookCount(), "Count the books"},
		{http.MethodPost, "/upsert_book", upsertBook, "Insert or update a book"},
	}

	for _, r := range routes {
		if err := router.Handle(r.method, r.path, r.ep, routing.Summary(r.summary)); err != nil {
			return err
		}
	}

	return nil
}

// HasAuthor reports whether any book was written by the author given as identifier.
func (s *Service) HasAuthor() contracts.Endpoint {
	sig := contracts.NewSignature(
		contracts.QueryParam[string]("identifier").Describe("The author's name."),
	).Returning(reflect.TypeFor[bool]())

	return contracts.Handle(sig, func(ctx context.Context, args contracts.Args) (any, error) {
		return s.store.HasAuthor(ctx, args["identifier"].(string))
	})
}

// HasCategory reports whether any book belongs to category.
func (s *Service) HasCategory() contracts.Endpoint {
	sig := contracts.NewSignature(contracts.QueryParam[string]("category")).Returning(reflect.TypeFor[bool]())

	return contracts.Handle(sig, func(ctx context.Context, args contracts.Args) (any, error) {
		return s.store.HasCategory(ctx, args["category"].(string))
	})
}

// HasBook reports whether the book exists.
func (s *Service) HasBook() contracts.Endpoint {
	sig := contracts.NewSignature(contracts.QueryParam[string]("book_id")).Returning(reflect.TypeFor[bool]())

	return contracts.Handle(sig, func(ctx context.Context, args contracts.Args) (any, error) {
		return s.store.HasBook(ctx, args["book_id"].(string))
	})
}

// BookCount returns the number of stored books.
func (s *Service) BookCount() contracts.Endpoint {
	sig := contracts.NewSignature().Returning(reflect.TypeFor[int]())

	return contracts.Handle(sig, func(ctx context.Context, _ contracts.Args) (any, error) {
		return s.store.BookCount(ctx)
	})
}

// BooksInCategory lists the books of an existing category.
func (s *Service) BooksInCategory() (contracts.Endpoint, error) {
	sig := contracts.NewSignature(contracts.QueryParam[string]("category")).Returning(reflect.TypeFor[[]Book]())

	sameCategory, err := s.compiler.Predicate(`result.all(b, b.category == category)`, "category", contracts.ResultParam)
	if err != nil {
		return nil, err
	}

	return s.checker.Decorate(
		contracts.Handle(sig, func(ctx context.Context, args contracts.Args) (any, error) {
			return s.store.BooksInCategory(ctx, args["category"].(string))
		}),
		contracts.Require(
			s.hasCategory(),
			contracts.StatusCode(http.StatusNotFound),
			contracts.Description(DescCategoryMustExist),
		),
		contracts.Ensure(s.authorsExist(), contracts.Description(DescAuthorsMustExist)),
		contracts.Ensure(sameCategory, contracts.Description(DescSameCategory)),
	)
}

// UpsertBook inserts the book or updates the stored book with the same identifier.
func (s *Service) UpsertBook() (contracts.Endpoint, error) {
	sig := contracts.NewSignature(contracts.BodyParam[Book]("book"))

	return s.UpsertBookWith(func(ctx context.Context, args contracts.Args) (any, error) {
		return nil, s.store.Upsert(ctx, args["book"].(Book))
	}, sig)
}

// UpsertBookWith decorates handler with the contracts of upsert_book. It lets tests check
// the contracts against handlers that break them.
func (s *Service) UpsertBookWith(handler contracts.HandlerFunc, sig contracts.Signature) (contracts.Endpoint, error) {
	return s.checker.Decorate(
		contracts.Handle(sig, handler),
		contracts.Snapshot(s.bookExists(), SnapshotHasBook),
		contracts.Snapshot(s.countBooks(), SnapshotBookCount),
		contracts.Ensure(s.bookExists(), contracts.Description(DescBookStored)),
		contracts.Ensure(s.countAdjusted(), contracts.Description(DescBookCount)),
	)
}

func (s *Service) hasCategory() contracts.Condition {
	return contracts.Async(func(ctx context.Context, b contracts.Bindings) contracts.Future {
		category := contracts.Arg[string](b, "category")

		return contracts.Go(func() (any, error) {
			return s.store.HasCategory(ctx, category)
		})
	}, "category").WithText("has_category(category)")
}

func (s *Service) authorsExist() contracts.Condition {
	return contracts.Async(func(ctx context.Context, b contracts.Bindings) contracts.Future {
		books := contracts.Result[[]Book](b)

		return contracts.Go(func() (any, error) {
			for _, book := range books {
				ok, err := s.store.HasAuthor(ctx, book.Author)
				if err != nil || !ok {
					return false, err
				}
			}

			return true, nil
		})
	}, contracts.ResultParam).WithText("all(has_author(book.author) for book in result)")
}

func (s *Service) bookExists() contracts.Condition {
	return contracts.Async(func(ctx context.Context, b contracts.Bindings) contracts.Future {
		book := contracts.Arg[Book](b, "book")

		return contracts.Go(func() (any, error) {
			return s.store.HasBook(ctx, book.Identifier)
		})
	}, "book").WithText("has_book(book.identifier)")
}

func (s *Service) countBooks() contracts.Condition {
	return contracts.Sync(func(ctx context.Context, _ contracts.Bindings) (any, error) {
		return s.store.BookCount(ctx)
	}).WithText("book_count()")
}

func (s *Service) countAdjusted() contracts.Condition {
	return contracts.Sync(func(ctx context.Context, b contracts.Bindings) (any, error) {
		count, err := s.store.BookCount(ctx)
		if err != nil {
			return false, err
		}

		want := contracts.OldValue[int](b.Old(), SnapshotBookCount)
		if !contracts.OldValue[bool](b.Old(), SnapshotHasBook) {
			want++
		}

		return count == want, nil
	}, contracts.OldParam).WithText("book_count() == OLD.book_count + (0 if OLD.has_book else 1)")
}
