package token

import (
	"context"
	"time"
)

// Token maps an opaque bearer token to an authenticated user. Issuance
// belongs to the identity provider; this store only resolves and expires.
type Token struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, t Token) error
	Get(ctx context.Context, token string) (*Token, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
