package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cerro-obs/cloudfrac/internal/cloudfrac"
	"github.com/cerro-obs/cloudfrac/internal/store"
)

func newTestApp(rows []cloudfrac.Row) (*fiber.App, cloudfrac.Site) {
	site := cloudfrac.RubinSite()

	memStore := store.NewMemoryStore(0, 0)
	if len(rows) > 0 {
		memStore.SaveRun(site.Name, rows)
	}

	app := fiber.New()
	RegisterRoutes(app, memStore, site)
	return app, site
}

func TestLatestEmptyStore(t *testing.T) {
	app, _ := newTestApp(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cloudfraction/latest", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestLatestReturnsNewestRow(t *testing.T) {
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)
	app, site := newTestApp([]cloudfrac.Row{
		{Timestamp: base, CloudFraction: 0.25, CloudFractionAboveSite: 0.1},
		{Timestamp: base.Add(10 * time.Minute), CloudFraction: 0.5, CloudFractionAboveSite: 0.25},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cloudfraction/latest", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		Site string `json:"site"`
		Row  struct {
			CloudFraction float64 `json:"cloudfraction"`
		} `json:"row"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Site != site.Name {
		t.Errorf("site = %q, want %q", body.Site, site.Name)
	}
	if body.Row.CloudFraction != 0.5 {
		t.Errorf("cf = %g, want the newest row's 0.5", body.Row.CloudFraction)
	}
}

func TestSeriesRequiresRange(t *testing.T) {
	app, _ := newTestApp(nil)

	// Missing both parameters.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cloudfraction/series", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// to before from.
	req = httptest.NewRequest(http.MethodGet,
		"/api/v1/cloudfraction/series?from=2026-02-03T15:00:00Z&to=2026-02-03T14:00:00Z", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestSeriesReturnsWindow(t *testing.T) {
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)
	app, _ := newTestApp([]cloudfrac.Row{
		{Timestamp: base, CloudFraction: 0.1},
		{Timestamp: base.Add(10 * time.Minute), CloudFraction: 0.2},
		{Timestamp: base.Add(20 * time.Minute), CloudFraction: 0.3},
	})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/cloudfraction/series?from=2026-02-03T14:00:00Z&to=2026-02-03T14:10:00Z", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		Rows []cloudfrac.Row `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Rows) != 2 {
		t.Errorf("expected 2 rows in window, got %d", len(body.Rows))
	}
}

func TestSeriesAcceptsUnixSeconds(t *testing.T) {
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)
	app, _ := newTestApp([]cloudfrac.Row{{Timestamp: base, CloudFraction: 0.1}})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/cloudfraction/series?from=1770127200&to=1770130800", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}
