package service

import "context"

// TokenVerifier resolves a bearer token to the caller's uid.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}
