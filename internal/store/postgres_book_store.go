package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Anilcodes01/proto-book/internal/domain"
	"github.com/Anilcodes01/proto-book/internal/id"
)

const bookSchemaSQL = `
CREATE TABLE IF NOT EXISTS books (
	id TEXT PRIMARY KEY,
	original_filename TEXT NOT NULL,
	original_url TEXT NOT NULL DEFAULT '',
	original_secure_url TEXT NOT NULL DEFAULT '',
	pdf_url TEXT NOT NULL DEFAULT '',
	pdf_secure_url TEXT NOT NULL DEFAULT '',
	processed_at TIMESTAMPTZ,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

type PostgresBookStore struct {
	db *sql.DB
}

func NewPostgresBookStore(ctx context.Context, dsn string) (*PostgresBookStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresBookStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresBookStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, bookSchemaSQL); err != nil {
		return fmt.Errorf("ensure books schema: %w", err)
	}
	return nil
}

func (s *PostgresBookStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresBookStore) Close() error {
	return s.db.Close()
}

func (s *PostgresBookStore) Create(ctx context.Context, book domain.Book) (domain.Book, error) {
	if book.ID == "" {
		book.ID = id.New()
	}
	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO books (id, original_filename, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		book.ID,
		book.OriginalFilename,
		book.CreatedAt,
		book.UpdatedAt,
	)
	if err != nil {
		return domain.Book{}, fmt.Errorf("insert book: %w", err)
	}

	return book, nil
}

func (s *PostgresBookStore) Get(ctx context.Context, id string) (domain.Book, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, original_filename, original_url, original_secure_url, pdf_url, pdf_secure_url,
		        processed_at, error_message, created_at, updated_at
		 FROM books
		 WHERE id = $1`,
		id,
	)

	var (
		book        domain.Book
		processedAt sql.NullTime
	)
	if err := row.Scan(
		&book.ID,
		&book.OriginalFilename,
		&book.OriginalURL,
		&book.OriginalSecureURL,
		&book.PDFURL,
		&book.PDFSecureURL,
		&processedAt,
		&book.ErrorMessage,
		&book.CreatedAt,
		&book.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, fmt.Errorf("query book: %w", err)
	}

	if processedAt.Valid {
		t := processedAt.Time.UTC()
		book.ProcessedAt = &t
	}
	return book, true, nil
}

// Update writes only the fields set on update; NULL parameters keep the
// stored column value.
func (s *PostgresBookStore) Update(ctx context.Context, id string, update domain.BookUpdate) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE books
		 SET original_url = COALESCE($2, original_url),
		     original_secure_url = COALESCE($3, original_secure_url),
		     pdf_url = COALESCE($4, pdf_url),
		     pdf_secure_url = COALESCE($5, pdf_secure_url),
		     processed_at = COALESCE($6, processed_at),
		     error_message = COALESCE($7, error_message),
		     updated_at = $8
		 WHERE id = $1`,
		id,
		update.OriginalURL,
		update.OriginalSecureURL,
		update.PDFURL,
		update.PDFSecureURL,
		update.ProcessedAt,
		update.ErrorMessage,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update book rows affected: %w", err)
	}
	if n == 0 {
		return ErrBookNotFound
	}
	return nil
}
