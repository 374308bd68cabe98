package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-archive/internal/archive"
	"github.com/i474232898/weather-archive/internal/dashboard"
	"github.com/i474232898/weather-archive/internal/observability"
	"github.com/i474232898/weather-archive/internal/store"
	"github.com/i474232898/weather-archive/internal/weather"
)

var day = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

type fakeIndex struct {
	idx archive.Index
	err error
}

func (f fakeIndex) FetchIndex(context.Context) (archive.Index, error) { return f.idx, f.err }

type fakeLoader struct{}

func (fakeLoader) Load(_ context.Context, sel archive.Selection) (weather.Dataset, archive.Report, error) {
	data := weather.Dataset{}
	report := archive.Report{LoadID: "test"}
	for _, city := range sel.Cities {
		if city == "Atlantis" {
			data[city] = []weather.Observation{}
			report.Failed = append(report.Failed, archive.FailedPair{City: city, Year: 2024, Error: "not found"})
			continue
		}
		data[city] = []weather.Observation{
			{Timestamp: day.Add(10 * time.Hour), Location: city, Temperature: 5, Description: "clear sky"},
			{Timestamp: day.Add(11 * time.Hour), Location: city, Temperature: 9, Description: "light rain"},
		}
	}
	return data, report, nil
}

func newTestApp(t *testing.T, index IndexSource) (*fiber.App, *store.MemoryStore) {
	t.Helper()
	log := observability.DiscardLogger()
	sessions := store.NewMemoryStore(10, time.Hour)
	app := NewApp("weather-archive-test", log)
	RegisterRoutes(app, Dependencies{
		Index:    index,
		Sessions: sessions,
		NewState: func() *dashboard.State {
			return dashboard.New(fakeLoader{}, dashboard.Options{Logger: log})
		},
		Logger: log,
	})
	return app, sessions
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, out
}

func tableLen(t *testing.T, view map[string]any) int {
	t.Helper()
	rows, ok := view["table"].([]any)
	if !ok {
		t.Fatalf("view has no table: %v", view)
	}
	return len(rows)
}

func TestListCities(t *testing.T) {
	app, _ := newTestApp(t, fakeIndex{idx: archive.Index{
		Cities:      map[string][]int{"Utrecht": {2024}, "Sao_Paulo": {2023, 2024}},
		LastUpdated: "2024-06-01",
	}})

	resp, body := do(t, app, http.MethodGet, "/api/v1/cities", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	cities := body["cities"].([]any)
	first := cities[0].(map[string]any)
	if first["id"] != "Sao_Paulo" || first["name"] != "Sao Paulo" {
		t.Fatalf("unexpected first city: %v", first)
	}
	if body["lastUpdated"] != "2024-06-01" {
		t.Fatalf("unexpected lastUpdated: %v", body["lastUpdated"])
	}
}

func TestListCities_IndexUnavailable(t *testing.T) {
	app, _ := newTestApp(t, fakeIndex{err: &archive.IndexError{Reason: "fetch failed", Err: errors.New("502")}})

	resp, body := do(t, app, http.MethodGet, "/api/v1/cities", "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, resp.StatusCode)
	}
	if body["error"] != true {
		t.Fatalf("expected error envelope, got %v", body)
	}
}

func TestDashboard(t *testing.T) {
	app, _ := newTestApp(t, fakeIndex{})

	resp, view := do(t, app, http.MethodGet, "/api/v1/dashboard?cities=Utrecht,Atlantis&minTemp=6", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if n := tableLen(t, view); n != 1 {
		t.Fatalf("expected 1 filtered row, got %d", n)
	}
	status := view["status"].(map[string]any)
	if status["fetchFailed"] != true {
		t.Fatalf("expected fetchFailed, got %v", status)
	}
}

func TestDashboard_RejectsTooManyCities(t *testing.T) {
	app, _ := newTestApp(t, fakeIndex{})

	cities := make([]string, 21)
	for i := range cities {
		cities[i] = "City" + string(rune('A'+i))
	}
	resp, _ := do(t, app, http.MethodGet, "/api/v1/dashboard?cities="+strings.Join(cities, ","), "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	app, sessions := newTestApp(t, fakeIndex{})

	resp, created := do(t, app, http.MethodPost, "/api/v1/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	id := created["id"].(string)
	base := "/api/v1/sessions/" + id

	// Quick ranges need loaded data.
	resp, _ = do(t, app, http.MethodPost, base+"/quick-range/week", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, resp.StatusCode)
	}

	resp, view := do(t, app, http.MethodPut, base+"/selection", `{"cities":["Utrecht","Veenendaal"],"years":[2024]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if n := tableLen(t, view); n != 4 {
		t.Fatalf("expected 4 rows, got %d", n)
	}

	// Pending filters are not applied until committed.
	_, view = do(t, app, http.MethodPut, base+"/filters", `{"minTemperature":"7","descriptions":["Light Rain"]}`)
	if n := tableLen(t, view); n != 4 {
		t.Fatalf("expected uncommitted filters to leave 4 rows, got %d", n)
	}
	_, view = do(t, app, http.MethodPut, base+"/filters?commit=true", `{"minTemperature":7,"startTime":"not a date","descriptions":["Light Rain"]}`)
	if n := tableLen(t, view); n != 2 {
		t.Fatalf("expected 2 rows after commit, got %d", n)
	}

	resp, _ = do(t, app, http.MethodPost, base+"/quick-range/day", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	resp, _ = do(t, app, http.MethodPost, base+"/quick-range/decade", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	resp, _ = do(t, app, http.MethodGet, base, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	resp, _ = do(t, app, http.MethodDelete, base, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	}
	if sessions.Len() != 0 {
		t.Fatalf("expected no sessions left, got %d", sessions.Len())
	}

	resp, _ = do(t, app, http.MethodGet, base, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestPutSelection_Validation(t *testing.T) {
	app, _ := newTestApp(t, fakeIndex{})
	_, created := do(t, app, http.MethodPost, "/api/v1/sessions?cities=Utrecht", "")
	base := "/api/v1/sessions/" + created["id"].(string)

	resp, _ := do(t, app, http.MethodPut, base+"/selection", `{"cities":["Utrecht"],"years":[1492]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
	resp, _ = do(t, app, http.MethodPut, base+"/selection", `{"cities":["../private/secret"]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d for a path-like city, got %d", http.StatusBadRequest, resp.StatusCode)
	}
	resp, _ = do(t, app, http.MethodPut, base+"/selection", `{"cities":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, fakeIndex{})

	resp, body := do(t, app, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", resp.StatusCode, body)
	}
}
