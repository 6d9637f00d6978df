package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/driver-hiring/internal/models"
)

const issuerPrefix = "https://securetoken.google.com/"

type firebaseClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// FirebaseVerifier validates Firebase Authentication ID tokens offline
// against Google's published signing keys.
type FirebaseVerifier struct {
	projectID string
	keys      KeySource
	leeway    time.Duration
	now       func() time.Time
}

func NewFirebaseVerifier(projectID string, keys KeySource) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	return &FirebaseVerifier{projectID: projectID, keys: keys, leeway: 30 * time.Second, now: time.Now}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, rawToken string) (models.Principal, error) {
	if rawToken == "" {
		return models.Principal{}, ErrMissingToken
	}
	var claims firebaseClaims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(issuerPrefix+v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return models.Principal{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return models.Principal{ID: claims.Subject, Name: claims.Name, Email: claims.Email}, nil
}

// ServiceAccount holds the fields of a Google service-account key file this
// service needs.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`

	raw []byte
}

// JSON returns the key file bytes as read from disk.
func (s *ServiceAccount) JSON() []byte { return s.raw }

func LoadServiceAccount(path string) (*ServiceAccount, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	var sa ServiceAccount
	if err := json.Unmarshal(b, &sa); err != nil {
		return nil, fmt.Errorf("decode service account %s: %w", path, err)
	}
	sa.raw = b
	return &sa, nil
}
