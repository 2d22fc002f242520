package types

import "time"

type Role string

const (
	RoleApplicant Role = "applicant"
	RoleBank      Role = "bank"
	RolePrincipal Role = "principal"
	RoleFinance   Role = "finance"
	RoleIT        Role = "it"
	RoleRegistrar Role = "registrar"
)

// AdminRoles may use the admissions review surface.
var AdminRoles = []Role{RolePrincipal, RoleFinance, RoleIT, RoleRegistrar}

func (r Role) Valid() bool {
	switch r {
	case RoleApplicant, RoleBank, RolePrincipal, RoleFinance, RoleIT, RoleRegistrar:
		return true
	}
	return false
}

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	FirstName    *string   `db:"first_name" json:"first_name"`
	LastName     *string   `db:"last_name" json:"last_name"`
	Phone        *string   `db:"phone" json:"phone"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins the given and family name, falling back to the email.
func (u *User) FullName() string {
	var name string
	if u.FirstName != nil {
		name = *u.FirstName
	}
	if u.LastName != nil && *u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += *u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// Identity is the authenticated caller, resolved once by the auth middleware.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// PasswordReset is an outstanding reset request. Only the SHA-256 of the
// emailed token is stored.
type PasswordReset struct {
	TokenHash string     `db:"token_hash" json:"-"`
	UserID    string     `db:"user_id" json:"user_id"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	UsedAt    *time.Time `db:"used_at" json:"used_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
