package users

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrEmailRegistered  = errors.New("email already registered")
	ErrWrongCredentials = errors.New("wrong email or password")
	ErrUserDisabled     = errors.New("user account is disabled")
	ErrPasswordNotSet   = errors.New("password sign-in not set up for this account")
)
