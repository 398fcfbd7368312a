// internal/catalog/service.go
package catalog

import "context"

// Service defines the interface for the book catalog.
type Service interface {
	AddBook(ctx context.Context, book Book) (*Book, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	ListBooks(ctx context.Context) ([]*Book, error)
	Search(ctx context.Context, query string) ([]*Book, error)
	SetReserved(ctx context.Context, id int64, reserved bool) error
	RemoveBook(ctx context.Context, id int64) error
}
