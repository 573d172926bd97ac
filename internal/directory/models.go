package directory

import (
	"time"

	"github.com/google/uuid"
)

// userRow is the users table shape. PasswordHash never leaves this package
// except through Authenticate-style lookups in the auth service.
type userRow struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	FullName     string    `db:"full_name"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

type teamRow struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

// Credentials is the login view of a user.
type Credentials struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
}
