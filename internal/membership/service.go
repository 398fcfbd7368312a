// internal/membership/service.go
package membership

import "context"

// Service defines the interface for the user directory.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Authenticate(ctx context.Context, nusp, password string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByNUSP(ctx context.Context, nusp string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	UpdateRole(ctx context.Context, id int64, role string) error
}
