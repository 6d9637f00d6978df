package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/example/driver-hiring/internal/models"
)

func TestFetchDriversSendsTokenAndDecodes(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"drivers":[{"id":2,"name":"Meera","vehicle_type":"SUV","available":true},{"id":1,"name":"Arjun","available":false}]}`))
	}))
	defer srv.Close()

	drivers, err := NewClient(srv.URL, "tok").FetchDrivers(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotAuth != "Bearer tok" || gotPath != "/api/admin/drivers" {
		t.Fatalf("unexpected request auth=%q path=%q", gotAuth, gotPath)
	}
	if len(drivers) != 2 || drivers[0].ID != 2 || *drivers[0].VehicleType != "SUV" || drivers[1].VehicleType != nil {
		t.Fatalf("unexpected drivers %+v", drivers)
	}
}

func TestFetchDriversWithoutTokenAndStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected auth header")
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "").FetchDrivers(context.Background()); err == nil {
		t.Fatal("expected error for 401")
	}
}

type staticSource struct {
	drivers []models.Driver
	err     error
}

func (s staticSource) FetchDrivers(context.Context) ([]models.Driver, error) { return s.drivers, s.err }

func TestHandlerRendersTable(t *testing.T) {
	suv := "SUV"
	src := staticSource{drivers: []models.Driver{
		{ID: 2, Name: "Meera", VehicleType: &suv, Available: true},
		{ID: 1, Name: "<b>Arjun</b>"},
	}}
	rec := httptest.NewRecorder()
	Handler(src, zap.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"<tr><td>2</td><td>Meera</td><td>SUV</td><td>Yes</td></tr>",
		"<tr><td>1</td><td>&lt;b&gt;Arjun&lt;/b&gt;</td><td></td><td>No</td></tr>",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in\n%s", want, body)
		}
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
}

func TestHandlerRendersEmptyTableOnFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(staticSource{err: errors.New("api down")}, zap.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<tr><td>") || !strings.Contains(rec.Body.String(), "<th>Vehicle</th>") {
		t.Fatalf("expected empty table, got\n%s", rec.Body.String())
	}
}
