// Package dashboard renders the operator view of registered drivers.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/driver-hiring/internal/models"
)

// Client reads the admin driver listing from the API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{BaseURL: baseURL, Token: token, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// FetchDrivers issues a single GET with no retry or pagination.
func (c *Client) FetchDrivers(ctx context.Context) ([]models.Driver, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/admin/drivers", nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("admin drivers: status %d", resp.StatusCode)
	}
	var body struct {
		Drivers []models.Driver `json:"drivers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("admin drivers: decode: %w", err)
	}
	return body.Drivers, nil
}

// DriverSource is satisfied by *Client.
type DriverSource interface {
	FetchDrivers(ctx context.Context) ([]models.Driver, error)
}

var page = template.Must(template.New("drivers").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Driver Hiring Admin</title></head>
<body>
<h1>Driver Hiring Admin</h1>
<table border="1" cellpadding="6">
<thead><tr><th>ID</th><th>Name</th><th>Vehicle</th><th>Available</th></tr></thead>
<tbody>
{{- range .}}
<tr><td>{{.ID}}</td><td>{{.Name}}</td><td>{{if .VehicleType}}{{.VehicleType}}{{end}}</td><td>{{if .Available}}Yes{{else}}No{{end}}</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

// Handler renders the driver table. A failed fetch is logged and the
// table is rendered empty.
func Handler(src DriverSource, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		drivers, err := src.FetchDrivers(r.Context())
		if err != nil {
			log.Error("fetch drivers failed", zap.Error(err))
			drivers = nil
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := page.Execute(w, drivers); err != nil {
			log.Error("render dashboard failed", zap.Error(err))
		}
	})
}
