package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Anilcodes01/proto-book/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestMemoryBookStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBookStore()

	created, err := s.Create(ctx, domain.Book{OriginalFilename: "novel.docx"})
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}

	if err := s.Update(ctx, created.ID, domain.BookUpdate{
		OriginalURL:       strPtr("http://cdn/o"),
		OriginalSecureURL: strPtr("https://cdn/o"),
	}); err != nil {
		t.Fatalf("update urls: %v", err)
	}
	if err := s.Update(ctx, created.ID, domain.BookUpdate{ErrorMessage: strPtr("render failed")}); err != nil {
		t.Fatalf("update error message: %v", err)
	}

	got, ok, err := s.Get(ctx, created.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.OriginalFilename != "novel.docx" {
		t.Fatalf("expected filename novel.docx, got %q", got.OriginalFilename)
	}
	if got.OriginalSecureURL != "https://cdn/o" {
		t.Fatalf("expected original secure url, got %q", got.OriginalSecureURL)
	}
	if got.ErrorMessage != "render failed" {
		t.Fatalf("expected error message, got %q", got.ErrorMessage)
	}
	if got.ProcessedAt != nil {
		t.Fatalf("expected no processed_at, got %v", got.ProcessedAt)
	}

	processed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := s.Update(ctx, created.ID, domain.BookUpdate{
		PDFSecureURL: strPtr("https://cdn/p"),
		ProcessedAt:  &processed,
		ErrorMessage: strPtr(""),
	}); err != nil {
		t.Fatalf("update completion: %v", err)
	}

	got, _, _ = s.Get(ctx, created.ID)
	if got.OriginalSecureURL != "https://cdn/o" {
		t.Fatalf("original url must survive later updates, got %q", got.OriginalSecureURL)
	}
	if got.PDFSecureURL != "https://cdn/p" {
		t.Fatalf("expected pdf secure url, got %q", got.PDFSecureURL)
	}
	if got.ErrorMessage != "" {
		t.Fatalf("expected cleared error message, got %q", got.ErrorMessage)
	}
	if got.ProcessedAt == nil || !processed.Equal(*got.ProcessedAt) {
		t.Fatalf("expected processed_at %v, got %v", processed, got.ProcessedAt)
	}
}

func TestMemoryBookStoreUnknownID(t *testing.T) {
	s := NewMemoryBookStore()

	_, ok, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if ok {
		t.Fatal("expected missing book")
	}

	err = s.Update(context.Background(), "missing", domain.BookUpdate{ErrorMessage: strPtr("x")})
	if !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
}

func TestMemoryBookStoreAssignsDistinctIDs(t *testing.T) {
	s := NewMemoryBookStore()
	ctx := context.Background()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := s.Create(ctx, domain.Book{OriginalFilename: "same.docx"})
			if err != nil {
				t.Errorf("create returned error: %v", err)
				return
			}
			mu.Lock()
			ids[b.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(ids) != 50 {
		t.Fatalf("expected 50 distinct ids, got %d", len(ids))
	}
}

func TestBookKey(t *testing.T) {
	if got := bookKey("abc"); got != "proto-book:book:abc" {
		t.Fatalf("unexpected key %q", got)
	}
}
