package types

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrProgressNotFound    = errors.New("application progress not found")
	ErrResetTokenInvalid   = errors.New("password reset token invalid or expired")

	ErrDuplicateEmail                = errors.New("email already registered")
	ErrDuplicatePin                  = errors.New("application fee pin already issued")
	ErrDuplicateTransactionReference = errors.New("transaction reference already recorded")
)
