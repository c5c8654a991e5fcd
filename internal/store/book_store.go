package store

import (
	"context"
	"errors"

	"github.com/Anilcodes01/proto-book/internal/domain"
)

var ErrBookNotFound = errors.New("book not found")

// BookStore persists one record per processing job. Records are never deleted.
type BookStore interface {
	Create(ctx context.Context, book domain.Book) (domain.Book, error)
	Get(ctx context.Context, id string) (domain.Book, bool, error)
	Update(ctx context.Context, id string, update domain.BookUpdate) error
}
