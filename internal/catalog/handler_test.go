// internal/catalog/handler_test.go
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acervo/internal/apperr"
)

type fakeCatalog struct {
	book *Book
	err  error
}

func (f *fakeCatalog) AddBook(context.Context, Book) (*Book, error)  { return f.book, f.err }
func (f *fakeCatalog) GetBook(context.Context, int64) (*Book, error) { return f.book, f.err }
func (f *fakeCatalog) ListBooks(context.Context) ([]*Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*Book{f.book}, nil
}
func (f *fakeCatalog) Search(ctx context.Context, _ string) ([]*Book, error) {
	return f.ListBooks(ctx)
}
func (f *fakeCatalog) SetReserved(context.Context, int64, bool) error { return f.err }
func (f *fakeCatalog) RemoveBook(context.Context, int64) error        { return f.err }

func newTestRouter(svc Service) *chi.Mux {
	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Post("/api/books", h.HandleAddBook)
	r.Get("/api/books/{id}", h.HandleGetBook)
	r.Get("/api/books/search", h.HandleSearch)
	r.Put("/api/books/{id}/reserve", h.HandleSetReserved)
	r.Delete("/api/books/{id}", h.HandleRemoveBook)
	return r
}

func sampleBook() *Book {
	return &Book{
		ID:      9788522112258,
		Code:    "MAT-101",
		Area:    "MAT",
		Authors: "Stewart, J.",
		Title:   "Calculus I",
	}
}

func TestHandleGetBook(t *testing.T) {
	router := newTestRouter(&fakeCatalog{book: sampleBook()})

	req := httptest.NewRequest(http.MethodGet, "/api/books/9788522112258", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got Book
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Calculus I", got.Title)
}

func TestHandleGetBookNotFound(t *testing.T) {
	router := newTestRouter(&fakeCatalog{err: apperr.New(apperr.NotFound, "book not found")})

	req := httptest.NewRequest(http.MethodGet, "/api/books/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetBookBadID(t *testing.T) {
	router := newTestRouter(&fakeCatalog{book: sampleBook()})

	req := httptest.NewRequest(http.MethodGet, "/api/books/not-a-barcode", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearchRequiresQuery(t *testing.T) {
	router := newTestRouter(&fakeCatalog{book: sampleBook()})

	req := httptest.NewRequest(http.MethodGet, "/api/books/search", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/books/search?q=calculus", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got []*Book
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
}

func TestHandleSetReserved(t *testing.T) {
	router := newTestRouter(&fakeCatalog{book: sampleBook()})

	body := bytes.NewBufferString(`{"is_reserved": true}`)
	req := httptest.NewRequest(http.MethodPut, "/api/books/9788522112258/reserve", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleRemoveBookWithHistory(t *testing.T) {
	router := newTestRouter(&fakeCatalog{
		err: apperr.New(apperr.Validation, "book has loan history and cannot be removed"),
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/books/9788522112258", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
