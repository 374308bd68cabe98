package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-archive/internal/archive"
	"github.com/i474232898/weather-archive/internal/dashboard"
	"github.com/i474232898/weather-archive/internal/store"
	"github.com/i474232898/weather-archive/internal/weather"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("city", func(fl validator.FieldLevel) bool {
		return archive.ValidCity(strings.TrimSpace(fl.Field().String()))
	})
	return v
}

// IndexSource serves the archive index.
type IndexSource interface {
	FetchIndex(ctx context.Context) (archive.Index, error)
}

// Dependencies are the collaborators the HTTP handlers need.
type Dependencies struct {
	Index    IndexSource
	Sessions *store.MemoryStore
	NewState func() *dashboard.State
	Logger   *slog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	h := &handlers{deps: deps}

	v1 := app.Group("/api/v1")
	v1.Get("/cities", h.listCities)
	v1.Get("/dashboard", h.dashboard)

	sessions := v1.Group("/sessions")
	sessions.Post("/", h.createSession)
	sessions.Get("/:id", h.getSession)
	sessions.Put("/:id/selection", h.putSelection)
	sessions.Put("/:id/filters", h.putFilters)
	sessions.Post("/:id/quick-range/:range", h.quickRange)
	sessions.Delete("/:id", h.deleteSession)
}

type handlers struct {
	deps Dependencies
}

type cityEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Years []int  `json:"years"`
}

func (h *handlers) listCities(c *fiber.Ctx) error {
	idx, err := h.deps.Index.FetchIndex(c.UserContext())
	if err != nil {
		return loadError(err)
	}

	cities := make([]cityEntry, 0, len(idx.Cities))
	for id, years := range idx.Cities {
		cities = append(cities, cityEntry{ID: id, Name: weather.DisplayName(id), Years: years})
	}
	sort.Slice(cities, func(i, j int) bool { return cities[i].ID < cities[j].ID })

	return c.JSON(fiber.Map{
		"cities":      cities,
		"lastUpdated": idx.LastUpdated,
	})
}

// dashboard computes a one-off view straight from query parameters.
func (h *handlers) dashboard(c *fiber.Ctx) error {
	sel, spec := dashboard.DecodeQuery(queryValues(c))
	if err := validateSelection(sel); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	st := h.deps.NewState()
	defer st.Close()

	st.UpdateFilters(spec)
	st.CommitFilters()
	if err := st.SetSelection(c.UserContext(), sel); err != nil {
		return loadError(err)
	}
	return c.JSON(st.View())
}

func (h *handlers) createSession(c *fiber.Ctx) error {
	sel, spec := dashboard.DecodeQuery(queryValues(c))
	if err := validateSelection(sel); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	st := h.deps.NewState()
	st.UpdateFilters(spec)
	st.CommitFilters()
	if len(sel.Cities) > 0 {
		if err := st.SetSelection(c.UserContext(), sel); err != nil {
			st.Close()
			return loadError(err)
		}
	}

	id := h.deps.Sessions.Save(st)
	h.deps.Logger.Info("dashboard session created", "session_id", id, "cities", sel.Cities)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":   id,
		"view": st.View(),
	})
}

func (h *handlers) getSession(c *fiber.Ctx) error {
	st, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(st.View())
}

func (h *handlers) putSelection(c *fiber.Ctx) error {
	st, err := h.session(c)
	if err != nil {
		return err
	}

	var req selectionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid selection body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	err = st.SetSelection(c.UserContext(), req.toSelection())
	switch {
	case err == nil, errors.Is(err, dashboard.ErrSuperseded):
		return c.JSON(st.View())
	default:
		return loadError(err)
	}
}

func (h *handlers) putFilters(c *fiber.Ctx) error {
	st, err := h.session(c)
	if err != nil {
		return err
	}

	var req filtersRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid filters body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	st.UpdateFilters(req.toFilterSpec())
	if c.QueryBool("commit") {
		st.CommitFilters()
	}
	return c.JSON(st.View())
}

func (h *handlers) quickRange(c *fiber.Ctx) error {
	st, err := h.session(c)
	if err != nil {
		return err
	}

	r, err := weather.ParseQuickRange(c.Params("range"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := st.ApplyQuickRange(r); err != nil {
		if errors.Is(err, dashboard.ErrBoundsUnknown) {
			return fiber.NewError(fiber.StatusConflict, "no observations loaded yet")
		}
		return err
	}
	return c.JSON(st.View())
}

func (h *handlers) deleteSession(c *fiber.Ctx) error {
	if err := h.deps.Sessions.Delete(c.Params("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) session(c *fiber.Ctx) (*dashboard.State, error) {
	st, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return nil, err
	}
	return st, nil
}

// loadError maps dataset load failures onto HTTP errors.
func loadError(err error) error {
	var idxErr *archive.IndexError
	switch {
	case errors.As(err, &idxErr):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusServiceUnavailable, "request cancelled")
	case errors.Is(err, dashboard.ErrSuperseded):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}

// selectionRequest is the body of PUT /sessions/:id/selection. Years applies
// to every city unless CityYears overrides it.
type selectionRequest struct {
	Cities    []string         `json:"cities" validate:"max=20,dive,required,max=64,city"`
	Years     []int            `json:"years" validate:"max=50,dive,gte=1900,lte=2200"`
	CityYears map[string][]int `json:"cityYears" validate:"max=20,dive,max=50,dive,gte=1900,lte=2200"`
	AllYears  bool             `json:"allYears"`
}

func (r selectionRequest) toSelection() archive.Selection {
	sel := archive.Selection{Cities: r.Cities, AllYears: r.AllYears}
	for _, city := range r.Cities {
		years, ok := r.CityYears[city]
		if !ok && len(r.Years) > 0 {
			years, ok = r.Years, true
		}
		if ok {
			if sel.Years == nil {
				sel.Years = map[string][]int{}
			}
			sel.Years[city] = years
		}
	}
	return sel
}

func validateSelection(sel archive.Selection) error {
	req := selectionRequest{Cities: sel.Cities, CityYears: sel.Years}
	return validate.Struct(req)
}

// filtersRequest is the body of PUT /sessions/:id/filters. Bounds are taken
// loosely: a value that does not parse means "no constraint".
type filtersRequest struct {
	StartTime      json.RawMessage `json:"startTime"`
	EndTime        json.RawMessage `json:"endTime"`
	MinTemperature json.RawMessage `json:"minTemperature"`
	MaxTemperature json.RawMessage `json:"maxTemperature"`
	Descriptions   []string        `json:"descriptions" validate:"max=100,dive,max=128"`
}

func (r filtersRequest) toFilterSpec() weather.FilterSpec {
	return weather.FilterSpec{
		StartTime:            dashboard.ParseTime(looseString(r.StartTime)),
		EndTime:              dashboard.ParseTime(looseString(r.EndTime)),
		MinTemperature:       dashboard.ParseFloat(looseString(r.MinTemperature)),
		MaxTemperature:       dashboard.ParseFloat(looseString(r.MaxTemperature)),
		SelectedDescriptions: r.Descriptions,
	}
}

// looseString returns a JSON string's contents, or a number/literal's raw text.
func looseString(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return ""
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return text
}

func queryValues(c *fiber.Ctx) url.Values {
	values, _ := url.ParseQuery(string(c.Request().URI().QueryString()))
	return values
}
