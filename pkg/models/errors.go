package models

import "errors"

// Common errors for account and session operations.
var (
	ErrAuthNotFound  = errors.New("account not found")
	ErrDuplicateAuth = errors.New("account already exists")
	ErrNotLoggedIn   = errors.New("player is not logged in")
	ErrAlreadyLogged = errors.New("player is already logged in")
	ErrEmptyIdentity = errors.New("identity is empty")
)
