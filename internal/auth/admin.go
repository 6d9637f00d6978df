package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/example/driver-hiring/internal/models"
)

// NewFirebaseApp initialises the Admin SDK with the service-account key.
// Empty fields fall back to the values in the key file.
func NewFirebaseApp(ctx context.Context, projectID, databaseURL string, sa *ServiceAccount) (*firebase.App, error) {
	conf := &firebase.Config{ProjectID: projectID, DatabaseURL: databaseURL}
	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsJSON(sa.JSON()))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	return app, nil
}

// IDTokenVerifier is the part of the Admin SDK auth client used here.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// SDKVerifier checks ID tokens with the Firebase Admin SDK.
type SDKVerifier struct {
	client IDTokenVerifier
}

func NewSDKVerifier(client IDTokenVerifier) *SDKVerifier { return &SDKVerifier{client: client} }

func (v *SDKVerifier) Verify(ctx context.Context, rawToken string) (models.Principal, error) {
	if rawToken == "" {
		return models.Principal{}, ErrMissingToken
	}
	tok, err := v.client.VerifyIDToken(ctx, rawToken)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if tok.UID == "" {
		return models.Principal{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	p := models.Principal{ID: tok.UID}
	p.Name, _ = tok.Claims["name"].(string)
	p.Email, _ = tok.Claims["email"].(string)
	return p, nil
}
