// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"acervo/internal/apperr"
)

// service implements the Service interface.
type service struct {
	db       *sqlx.DB
	searcher *Searcher
	log      *zap.Logger
}

// NewService creates a new catalog service instance. searcher may be nil, in
// which case search always runs against the database.
func NewService(db *sqlx.DB, searcher *Searcher, log *zap.Logger) Service {
	return &service{db: db, searcher: searcher, log: log}
}

// availability is derived on read from the open-loan state alone; the
// reserve flag is reported separately and blocks borrowing on its own.
const selectBook = `
	SELECT b.id, b.code, b.area, b.subarea, b.authors, b.edition, b.language,
	       b.volume, b.exemplar, b.title, COALESCE(b.subtitle, '') AS subtitle,
	       b.is_reserved, b.created_at,
	       (NOT EXISTS (
	           SELECT 1 FROM loans l WHERE l.book_id = b.id AND l.returned_at IS NULL
	       )) AS available
	FROM books b
`

// AddBook registers a new physical copy.
func (s *service) AddBook(ctx context.Context, book Book) (*Book, error) {
	if book.ID <= 0 {
		return nil, apperr.New(apperr.Validation, "book id must be a positive barcode number")
	}
	if book.Code == "" || book.Title == "" {
		return nil, apperr.New(apperr.Validation, "code and title are required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, code, area, subarea, authors, edition, language, volume, exemplar, title, subtitle)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, book.ID, book.Code, book.Area, book.Subarea, book.Authors, book.Edition,
		book.Language, book.Volume, book.Exemplar, book.Title, book.Subtitle)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "insert book", err)
	}

	created, err := s.GetBook(ctx, book.ID)
	if err != nil {
		return nil, err
	}

	if s.searcher != nil {
		// Index updates are best effort; the database remains authoritative.
		if err := s.searcher.IndexBook(ctx, created); err != nil {
			s.log.Warn("search index update failed", zap.Int64("book_id", created.ID), zap.Error(err))
		}
	}
	return created, nil
}

// GetBook retrieves a copy by its barcode id.
func (s *service) GetBook(ctx context.Context, id int64) (*Book, error) {
	book := &Book{}
	err := s.db.GetContext(ctx, book, selectBook+" WHERE b.id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "book not found")
		}
		return nil, apperr.Wrap(apperr.Infrastructure, "get book", err)
	}
	return book, nil
}

// ListBooks returns every copy in the catalog.
func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	var books []*Book
	if err := s.db.SelectContext(ctx, &books, selectBook+" ORDER BY b.code, b.exemplar"); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "list books", err)
	}
	return books, nil
}

// Search finds copies by title, author or code. It prefers the search index
// and falls back to the database when the index is unreachable.
func (s *service) Search(ctx context.Context, query string) ([]*Book, error) {
	if s.searcher != nil {
		ids, err := s.searcher.Search(ctx, query)
		if err == nil {
			return s.booksByIDs(ctx, ids)
		}
		s.log.Warn("search index unavailable, falling back to database", zap.Error(err))
	}
	return s.searchDatabase(ctx, query)
}

func (s *service) booksByIDs(ctx context.Context, ids []int64) ([]*Book, error) {
	if len(ids) == 0 {
		return []*Book{}, nil
	}
	query, args, err := sqlx.In(selectBook+" WHERE b.id IN (?)", ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "build search query", err)
	}
	var books []*Book
	if err := s.db.SelectContext(ctx, &books, s.db.Rebind(query), args...); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "fetch searched books", err)
	}
	return books, nil
}

func (s *service) searchDatabase(ctx context.Context, query string) ([]*Book, error) {
	var books []*Book
	pattern := "%" + query + "%"
	err := s.db.SelectContext(ctx, &books, selectBook+`
		WHERE b.title ILIKE $1 OR b.authors ILIKE $1 OR b.code ILIKE $1
		ORDER BY b.title
		LIMIT 20
	`, pattern)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "database search", err)
	}
	return books, nil
}

// SetReserved flips the didactic-reserve flag.
func (s *service) SetReserved(ctx context.Context, id int64, reserved bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE books SET is_reserved = $1 WHERE id = $2`, reserved, id)
	if err != nil {
		return apperr.Wrap(apperr.Infrastructure, "set reserved", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "book not found")
	}
	return nil
}

// RemoveBook deletes a copy. Copies referenced by any loan stay for the
// ledger's history.
func (s *service) RemoveBook(ctx context.Context, id int64) error {
	var referenced bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM loans WHERE book_id = $1)`, id).Scan(&referenced)
	if err != nil {
		return apperr.Wrap(apperr.Infrastructure, "check loan references", err)
	}
	if referenced {
		return apperr.New(apperr.Validation, "book has loan history and cannot be removed")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(apperr.Infrastructure, "delete book", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "book not found")
	}

	if s.searcher != nil {
		if err := s.searcher.RemoveBook(ctx, id); err != nil {
			s.log.Warn("search index delete failed", zap.Int64("book_id", id), zap.Error(err))
		}
	}
	return nil
}
