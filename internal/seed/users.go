package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admissions/internal/auth"
	"admissions/internal/utils"
	"admissions/pkg/types"
)

type UserWriter interface {
	UserByEmail(ctx context.Context, email string) (*types.User, error)
	CreateUser(ctx context.Context, user *types.User) error
}

type staffUserSeed struct {
	Email     string
	FirstName string
	LastName  string
	Role      types.Role
}

var staffUsers = []staffUserSeed{
	{Email: "bank@admissions.local", FirstName: "Bank", LastName: "Teller", Role: types.RoleBank},
	{Email: "principal@admissions.local", FirstName: "School", LastName: "Principal", Role: types.RolePrincipal},
	{Email: "finance@admissions.local", FirstName: "Finance", LastName: "Officer", Role: types.RoleFinance},
	{Email: "it@admissions.local", FirstName: "IT", LastName: "Support", Role: types.RoleIT},
	{Email: "registrar@admissions.local", FirstName: "Academic", LastName: "Registrar", Role: types.RoleRegistrar},
}

// SeedStaffUsers creates one account per staff role with password. Existing
// accounts are left untouched. Returns the number of accounts created.
func SeedStaffUsers(ctx context.Context, users UserWriter, password string) (int, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash seed password: %w", err)
	}

	seeded := 0
	for _, staff := range staffUsers {
		_, err := users.UserByEmail(ctx, staff.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, types.ErrUserNotFound) {
			return seeded, fmt.Errorf("failed to fetch staff user %s: %w", staff.Email, err)
		}

		now := time.Now().UTC()
		user := &types.User{
			ID:           utils.NanoID(),
			Email:        staff.Email,
			PasswordHash: hash,
			Role:         staff.Role,
			FirstName:    utils.StringPtr(staff.FirstName),
			LastName:     utils.StringPtr(staff.LastName),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.CreateUser(ctx, user); err != nil {
			return seeded, fmt.Errorf("failed to create staff user %s: %w", staff.Email, err)
		}
		seeded++
	}

	return seeded, nil
}
