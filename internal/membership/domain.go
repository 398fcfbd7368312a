// internal/membership/domain.go
package membership

import "time"

// Roles a user can hold. Proaluno is the library desk account; internal-use
// ghost loans are recorded against it.
const (
	RoleAdmin    = "admin"
	RoleProaluno = "proaluno"
	RoleAluno    = "aluno"
)

// User represents an account in the directory. NUSP is the university
// registration number and the primary human-facing identifier.
type User struct {
	ID           int64     `db:"id" json:"id"`
	NUSP         string    `db:"nusp" json:"nusp"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	Role         string    `db:"role" json:"role"`
	Class        string    `db:"class" json:"class,omitempty"`
	ProfileImage string    `db:"profile_image" json:"profile_image,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	PasswordSalt string    `db:"password_salt" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	NUSP     string `json:"nusp" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=admin proaluno aluno"`
	Class    string `json:"class"`
	Password string `json:"password" validate:"required,min=8"`
}
