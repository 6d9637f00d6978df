package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// GoogleCertsURL publishes the x509 certificates that sign Firebase ID tokens.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const (
	defaultCertTTL    = time.Hour
	defaultMinRefresh = time.Minute
)

// KeySource resolves a token key id to the RSA key that signed it.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// CertSource fetches and caches Google's token signing certificates. The
// cache lives until the response's Cache-Control max-age. An unknown kid
// refreshes the set at most once per MinRefresh while it is unexpired, and
// concurrent refreshes share one fetch.
type CertSource struct {
	URL        string
	Client     *http.Client
	MinRefresh time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expires   time.Time
	fetchedAt time.Time
	now       func() time.Time

	fetches singleflight.Group
}

func NewCertSource(url string) *CertSource {
	if url == "" {
		url = GoogleCertsURL
	}
	return &CertSource{
		URL:        url,
		Client:     &http.Client{Timeout: 5 * time.Second},
		MinRefresh: defaultMinRefresh,
		now:        time.Now,
	}
}

func (c *CertSource) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k, ok, fresh, recent := c.lookup(kid)
	if ok && fresh {
		return k, nil
	}
	if !fresh || !recent {
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
		k, ok, _, _ = c.lookup(kid)
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown key id %q", ErrUnauthenticated, kid)
	}
	return k, nil
}

func (c *CertSource) lookup(kid string) (key *rsa.PublicKey, ok, fresh, recent bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	key, ok = c.keys[kid]
	return key, ok, now.Before(c.expires), !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) < c.MinRefresh
}

func (c *CertSource) refresh(ctx context.Context) error {
	// The shared fetch outlives any single caller's cancellation; the client
	// timeout bounds it.
	ctx = context.WithoutCancel(ctx)
	_, err, _ := c.fetches.Do("certs", func() (interface{}, error) {
		keys, ttl, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		now := c.now()
		c.keys = keys
		c.fetchedAt = now
		c.expires = now.Add(ttl)
		return nil, nil
	})
	return err
}

func (c *CertSource) fetch(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch signing certs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("fetch signing certs: status %d", resp.StatusCode)
	}

	var pems map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&pems); err != nil {
		return nil, 0, fmt.Errorf("decode signing certs: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(pems))
	for kid, pem := range pems {
		k, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, 0, fmt.Errorf("parse cert %s: %w", kid, err)
		}
		keys[kid] = k
	}
	return keys, maxAge(resp.Header.Get("Cache-Control")), nil
}

func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultCertTTL
}
