package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/driver-hiring/internal/models"
)

var (
	// ErrUnauthenticated is the root of every verification failure.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrMissingToken    = fmt.Errorf("%w: missing Authorization header", ErrUnauthenticated)
)

// Verifier checks a bearer credential with the identity service.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (models.Principal, error)
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(models.Principal)
	return p, ok
}
