package store

import (
	"context"
	"sync"
	"time"

	"github.com/Anilcodes01/proto-book/internal/domain"
	"github.com/Anilcodes01/proto-book/internal/id"
)

type MemoryBookStore struct {
	mu    sync.RWMutex
	books map[string]domain.Book
	now   func() time.Time
}

func NewMemoryBookStore() *MemoryBookStore {
	return &MemoryBookStore{
		books: make(map[string]domain.Book),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryBookStore) Create(_ context.Context, book domain.Book) (domain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if book.ID == "" {
		book.ID = id.New()
	}
	now := s.now()
	book.CreatedAt = now
	book.UpdatedAt = now
	s.books[book.ID] = book
	return book, nil
}

func (s *MemoryBookStore) Get(_ context.Context, id string) (domain.Book, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.books[id]
	return book, ok, nil
}

func (s *MemoryBookStore) Update(_ context.Context, id string, update domain.BookUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return ErrBookNotFound
	}

	update.Apply(&book)
	book.UpdatedAt = s.now()
	s.books[id] = book
	return nil
}

func (s *MemoryBookStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryBookStore) Close() error {
	return nil
}
