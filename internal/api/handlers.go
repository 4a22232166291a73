package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/biter777/countries"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"covidboard/internal/config"
	"covidboard/internal/engine"
	"covidboard/internal/export"
	"covidboard/internal/metrics"
	"covidboard/internal/models"
	"covidboard/internal/render"
)

const defaultRecordLimit = 100

// state is swapped as a whole once loading finishes or fails.
type state struct {
	store   *engine.ColumnStore
	loadErr error
}

type Handler struct {
	state   atomic.Pointer[state]
	presets []config.Preset
	metrics metrics.Store
	log     zerolog.Logger
}

type Option func(*Handler)

func WithPresets(p []config.Preset) Option { return func(h *Handler) { h.presets = p } }

func WithMetrics(m metrics.Store) Option { return func(h *Handler) { h.metrics = m } }

func WithLogger(l zerolog.Logger) Option { return func(h *Handler) { h.log = l } }

// NewHandler serves store. With a nil store every dataset route answers 503
// until SetData is called.
func NewHandler(store *engine.ColumnStore, opts ...Option) *Handler {
	h := &Handler{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	h.state.Store(&state{store: store})
	return h
}

func (h *Handler) SetData(store *engine.ColumnStore) {
	h.state.Store(&state{store: store})
}

// SetLoadError records why the dataset is unavailable.
func (h *Handler) SetLoadError(err error) {
	h.state.Store(&state{loadErr: err})
}

func (h *Handler) Data() *engine.ColumnStore {
	return h.state.Load().store
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/api/presets", h.GetPresets)

	api := e.Group("/api", h.requireData)
	api.GET("/dataset", h.GetDataset)
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/kpis", h.GetKPIs)
	api.GET("/charts/:name", h.GetChart)
	api.GET("/charts/:name/png", h.GetChartPNG)
	api.GET("/records", h.GetRecords)
	api.GET("/records/export", h.GetRecordsExport)
}

func (h *Handler) requireData(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s := h.state.Load()
		if s.loadErr != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "dataset failed to load").SetInternal(s.loadErr)
		}
		if s.store == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "dataset is loading")
		}
		return next(c)
	}
}

// --- HANDLERS ---
func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) Health(c echo.Context) error {
	s := h.state.Load()
	resp := map[string]interface{}{
		"status":  "ok",
		"loading": s.store == nil && s.loadErr == nil,
	}
	if s.loadErr != nil {
		resp["status"] = "degraded"
		resp["error"] = s.loadErr.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetPresets(c echo.Context) error {
	presets := h.presets
	if presets == nil {
		presets = []config.Preset{}
	}
	return c.JSON(http.StatusOK, presets)
}

func (h *Handler) GetDataset(c echo.Context) error {
	return c.JSON(http.StatusOK, engine.Meta(h.Data(), isoAlpha3))
}

type dashboardResponse struct {
	*models.DashboardData
	Formatted render.FormattedKPIs `json:"formatted"`
}

func (h *Handler) GetDashboard(c echo.Context) error {
	data, err := h.compute(c)
	if err != nil || data == nil {
		return err
	}
	return c.JSON(http.StatusOK, dashboardResponse{data, render.FormatKPIs(data.KPIs)})
}

func (h *Handler) GetKPIs(c echo.Context) error {
	data, err := h.compute(c)
	if err != nil || data == nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"criteria":  data.Criteria,
		"rows":      data.Rows,
		"kpis":      data.KPIs,
		"formatted": render.FormatKPIs(data.KPIs),
	})
}

func (h *Handler) GetChart(c echo.Context) error {
	data, err := h.compute(c)
	if err != nil || data == nil {
		return err
	}
	chart, err := render.Lookup(c.Param("name"), data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chart)
}

func (h *Handler) GetChartPNG(c echo.Context) error {
	data, err := h.compute(c)
	if err != nil || data == nil {
		return err
	}
	var buf bytes.Buffer
	if err := render.RenderPNG(&buf, c.Param("name"), data); err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

// GetRecords returns a page of the filtered raw rows.
func (h *Handler) GetRecords(c echo.Context) error {
	view, _, err := h.filter(c)
	if err != nil {
		return err
	}
	total := view.Len()
	limit, offset := getPaginationParams(c, defaultRecordLimit)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   view.Records(offset, limit),
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetRecordsExport(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return err
	}
	view, _, err := h.filter(c)
	if err != nil {
		return err
	}

	// Buffer so that a failed export never leaves a truncated download.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, view); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", "covid_data."+format.Extension()))
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (h *Handler) filter(c echo.Context) (*engine.View, models.Criteria, error) {
	store := h.Data()
	crit, err := h.criteria(c, store)
	if err != nil {
		return nil, crit, err
	}
	view, err := engine.Filter(store.All(), crit)
	return view, crit, err
}

// compute runs one dashboard pass for the request's criteria. A nil result
// with a nil error means a 304 has already been written.
func (h *Handler) compute(c echo.Context) (*models.DashboardData, error) {
	store := h.Data()
	crit, err := h.criteria(c, store)
	if err != nil {
		return nil, err
	}

	tag := etag(store, crit)
	if etagMatches(c.Request().Header.Get(headerIfNoneMatch), tag) {
		c.Response().Header().Set(headerETag, tag)
		return nil, c.NoContent(http.StatusNotModified)
	}

	start := time.Now()
	data, err := engine.Compute(store, crit)
	if h.metrics != nil {
		h.metrics.ObserveCompute(time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	c.Response().Header().Set(headerETag, tag)
	h.log.Debug().
		Strs("countries", crit.Countries).
		Stringer("start", crit.Start).
		Stringer("end", crit.End).
		Int("rows", data.Rows).
		Dur("took", time.Since(start)).
		Msg("computed dashboard")
	return data, nil
}

func isoAlpha3(name string) string {
	code := countries.ByName(name)
	if code == countries.Unknown {
		return ""
	}
	return code.Alpha3()
}
