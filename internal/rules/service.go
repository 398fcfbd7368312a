// internal/rules/service.go
package rules

import "context"

// Service defines the interface for the rules store.
type Service interface {
	Get(ctx context.Context) (Rules, error)
	Update(ctx context.Context, r Rules) (Rules, error)
}
