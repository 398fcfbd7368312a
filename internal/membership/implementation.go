// internal/membership/implementation.go
package membership

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"acervo/internal/apperr"
)

// service implements the Service interface.
type service struct {
	db  *sqlx.DB
	log *zap.Logger
}

// NewService creates a new membership service instance.
func NewService(db *sqlx.DB, log *zap.Logger) Service {
	return &service{db: db, log: log}
}

const selectUser = `
	SELECT id, nusp, email, name, role, class, profile_image,
	       password_hash, password_salt, created_at
	FROM users
`

// Register creates a new account with an Argon2id credential.
func (s *service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	role := input.Role
	if role == "" {
		role = RoleAluno
	}

	passwordHash, salt, err := hashPassword(input.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "hash password", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (nusp, email, name, role, class, password_hash, password_salt)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, input.NUSP, input.Email, input.Name, role, input.Class, passwordHash, salt).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperr.New(apperr.Validation, "nusp or email already registered")
		}
		return nil, apperr.Wrap(apperr.Infrastructure, "insert user", err)
	}

	s.log.Info("user registered", zap.Int64("user_id", id), zap.String("role", role))
	return s.GetByID(ctx, id)
}

// Authenticate verifies NUSP + password and returns the user on success.
func (s *service) Authenticate(ctx context.Context, nusp, password string) (*User, error) {
	user, err := s.GetByNUSP(ctx, nusp)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			// Same error for unknown user and wrong password.
			return nil, apperr.New(apperr.Unauthorized, "invalid credentials")
		}
		return nil, err
	}

	ok, err := verifyPassword(password, user.PasswordSalt, user.PasswordHash)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "verify password", err)
	}
	if !ok {
		return nil, apperr.New(apperr.Unauthorized, "invalid credentials")
	}
	return user, nil
}

// GetByID retrieves a user by numeric id.
func (s *service) GetByID(ctx context.Context, id int64) (*User, error) {
	user := &User{}
	err := s.db.GetContext(ctx, user, selectUser+" WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "user not found")
		}
		return nil, apperr.Wrap(apperr.Infrastructure, "get user", err)
	}
	return user, nil
}

// GetByNUSP retrieves a user by registration number.
func (s *service) GetByNUSP(ctx context.Context, nusp string) (*User, error) {
	user := &User{}
	err := s.db.GetContext(ctx, user, selectUser+" WHERE nusp = $1", nusp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "user not found")
		}
		return nil, apperr.Wrap(apperr.Infrastructure, "get user by nusp", err)
	}
	return user, nil
}

// List returns every account.
func (s *service) List(ctx context.Context) ([]*User, error) {
	var users []*User
	if err := s.db.SelectContext(ctx, &users, selectUser+" ORDER BY nusp"); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "list users", err)
	}
	return users, nil
}

// UpdateRole changes an account's role.
func (s *service) UpdateRole(ctx context.Context, id int64, role string) error {
	if role != RoleAdmin && role != RoleProaluno && role != RoleAluno {
		return apperr.New(apperr.Validation, "unknown role")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return apperr.Wrap(apperr.Infrastructure, "update role", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "user not found")
	}
	return nil
}
