package shared

import "fmt"

var (
	// Configuration errors
	ErrConfiguration      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Identity provider errors
	ErrTransport = fmt.Errorf("identity provider unreachable")
	ErrProvider  = fmt.Errorf("identity provider rejected request")
	ErrDecode    = fmt.Errorf("unexpected identity provider response")

	// Store errors
	ErrStoreConnection = fmt.Errorf("store connection failed")
	ErrNoMigrations    = fmt.Errorf("no migrations to rollback")
	ErrNotFound        = fmt.Errorf("not found")
	ErrDuplicate       = fmt.Errorf("already exists")

	// Authentication errors
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")
	ErrUnauthorized   = fmt.Errorf("not authenticated")

	// Input validation errors
	ErrInvalidInput = fmt.Errorf("invalid input")
)
