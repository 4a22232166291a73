package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidboard/internal/config"
	"covidboard/internal/engine"
	"covidboard/internal/metrics"
	"covidboard/internal/models"
)

func day(d int) models.Date {
	return models.NewDate(2021, time.January, d)
}

func scenarioStore() *engine.ColumnStore {
	store := engine.NewColumnStore([]models.Record{
		{Country: "Kenya", Date: day(1), NewCases: 10, NewDeaths: 1, Vaccinated: 100},
		{Country: "Germany", Date: day(1), NewCases: 5, NewDeaths: 0, Vaccinated: 50},
		{Country: "Kenya", Date: day(2), NewCases: 7, NewDeaths: 2, Vaccinated: 120},
	})
	store.Checksum = 42
	return store
}

func newTestServer(store *engine.ColumnStore, opts ...Option) (*echo.Echo, *Handler) {
	h := NewHandler(store, opts...)
	cfg := config.Default().Server
	cfg.RateLimit = 0
	return NewServer(h, cfg, zerolog.Nop(), nil), h
}

func get(e *echo.Echo, target string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestGetDashboard_Defaults(t *testing.T) {
	e, _ := newTestServer(scenarioStore())
	rec := get(e, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Criteria  models.Criteria      `json:"criteria"`
		Rows      int                  `json:"rows"`
		KPIs      models.KPIs          `json:"kpis"`
		Charts    models.ChartPayloads `json:"charts"`
		Formatted map[string]string    `json:"formatted"`
	}
	decode(t, rec, &resp)

	assert.Equal(t, []string{"Kenya", "Germany"}, resp.Criteria.Countries)
	assert.Equal(t, day(1), resp.Criteria.Start)
	assert.Equal(t, day(2), resp.Criteria.End)
	assert.Equal(t, 3, resp.Rows)
	assert.Equal(t, models.KPIs{TotalCases: 22, TotalDeaths: 3, TotalVaccinated: 270}, resp.KPIs)
	assert.Equal(t, "270", resp.Formatted["total_vaccinated"])
	assert.Equal(t, []models.CountryTotal{{Country: "Kenya", Value: 3}, {Country: "Germany", Value: 0}}, resp.Charts.DeathsByCountry)
	assert.NotEmpty(t, rec.Header().Get(headerETag))
}

func TestGetKPIs_Filtered(t *testing.T) {
	e, _ := newTestServer(scenarioStore())
	rec := get(e, "/api/kpis?country=Kenya&start=2021-01-01&end=2021-01-01")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Rows int         `json:"rows"`
		KPIs models.KPIs `json:"kpis"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.Rows)
	assert.Equal(t, int64(10), resp.KPIs.TotalCases)
}

func TestGetKPIs_EmptyCountrySelection(t *testing.T) {
	e, _ := newTestServer(scenarioStore())
	rec := get(e, "/api/kpis?country=")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Rows int         `json:"rows"`
		KPIs models.KPIs `json:"kpis"`
	}
	decode(t, rec, &resp)
	assert.Zero(t, resp.Rows)
	assert.Equal(t, models.KPIs{}, resp.KPIs)
}

func TestCriteria_Errors(t *testing.T) {
	e, _ := newTestServer(scenarioStore())
	tests := []struct {
		name   string
		target string
		code   int
	}{
		{name: "start after end", target: "/api/dashboard?start=2021-01-02&end=2021-01-01", code: http.StatusBadRequest},
		{name: "bad date", target: "/api/dashboard?start=yesterday", code: http.StatusBadRequest},
		{name: "strict unknown country", target: "/api/dashboard?countries=Kenya,Atlantis&strict=true", code: http.StatusBadRequest},
		{name: "bad strict flag", target: "/api/dashboard?strict=maybe", code: http.StatusBadRequest},
		{name: "unknown preset", target: "/api/dashboard?preset=nope", code: http.StatusNotFound},
		{name: "unknown chart", target: "/api/charts/heatmap", code: http.StatusNotFound},
		{name: "unknown export", target: "/api/records/export?format=parquet", code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(e, tt.target)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())

			var resp errorResponse
			decode(t, rec, &resp)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestUnknownCountriesIgnoredByDefault(t *testing.T) {
	e, _ := newTestServer(scenarioStore())
	rec := get(e, "/api/kpis?country=Kenya&country=Atlantis")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Rows int `json:"rows"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.Rows)
}

func TestGetDashboard_ETag(t *testing.T) {
	e, _ := newTestServer(scenarioStore())
	first := get(e, "/api/dashboard?countries=Germany,Kenya")
	require.Equal(t, http.StatusOK, first.Code)
	tag := first.Header().Get(headerETag)
	require.NotEmpty(t, tag)

	// Country order does not change the result.
	again := get(e, "/api/dashboard?countries=Kenya,Germany", headerIfNoneMatch, tag)
	assert.Equal(t, http.StatusNotModified, again.Code)
	assert.Empty(t, again.Body.String())

	other := get(e, "/api/dashboard?country=Kenya", headerIfNoneMatch, tag)
	assert.Equal(t, http.StatusOK, other.Code)
	assert.NotEqual(t, tag, other.Header().Get(headerETag))
}

func TestGetChart(t *testing.T) {
	e, _ := newTestServer(scenarioStore())
	rec := get(e, "/api/charts/daily-cases")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Name  string             `json:"name"`
		Title string             `json:"title"`
		Kind  string             `json:"kind"`
		Data  []models.DatePoint `json:"data"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "daily-cases", resp.Name)
	assert.Equal(t, "Total Daily Cases", resp.Title)
	assert.Equal(t, "bar", resp.Kind)
	assert.Equal(t, []models.DatePoint{{Date: day(1), Value: 15}, {Date: day(2), Value: 7}}, resp.Data)
}

func TestGetChartPNG(t *testing.T) {
	e, _ := newTestServer(scenarioStore())
	rec := get(e, "/api/charts/deaths-by-country/png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = get(e, "/api/charts/cases-over-time/png?start=2021-01-02")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetRecords(t *testing.T) {
	e, _ := newTestServer(scenarioStore())
	rec := get(e, "/api/records?country=Kenya&limit=1&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data   []models.Record `json:"data"`
		Total  int             `json:"total"`
		Limit  int             `json:"limit"`
		Offset int             `json:"offset"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Limit)
	assert.Equal(t, 1, resp.Offset)
	assert.Equal(t, []models.Record{{Country: "Kenya", Date: day(2), NewCases: 7, NewDeaths: 2, Vaccinated: 120}}, resp.Data)

	rec = get(e, "/api/records?offset=10")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Empty(t, resp.Data)
	assert.Equal(t, defaultRecordLimit, resp.Limit)
}

func TestGetRecordsExport(t *testing.T) {
	e, _ := newTestServer(scenarioStore())
	rec := get(e, "/api/records/export?format=csv&country=Germany")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "covid_data.csv")
	assert.Equal(t, "DATE,COUNTRY,NEW_CASES,NEW_DEATHS,VACCINATED\n2021-01-01,Germany,5,0,50\n", rec.Body.String())

	rec = get(e, "/api/records/export?format=arrow")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "covid_data.arrows")
	assert.NotZero(t, rec.Body.Len())
}

func TestGetDataset(t *testing.T) {
	e, _ := newTestServer(scenarioStore())
	rec := get(e, "/api/dataset")
	require.Equal(t, http.StatusOK, rec.Code)

	var meta models.DatasetMeta
	decode(t, rec, &meta)
	assert.Equal(t, 3, meta.Rows)
	assert.Equal(t, day(1), meta.MinDate)
	assert.Equal(t, day(2), meta.MaxDate)
	assert.Equal(t, []models.CountryInfo{{Name: "Kenya", ISO3: "KEN"}, {Name: "Germany", ISO3: "DEU"}}, meta.Countries)
	assert.Equal(t, "summed-as-daily", meta.VaccinatedSemantics)
}

func TestPresets(t *testing.T) {
	presets := []config.Preset{{Name: "germany-day-one", Countries: []string{"Germany"}, End: "2021-01-01"}}
	e, _ := newTestServer(scenarioStore(), WithPresets(presets))

	rec := get(e, "/api/kpis?preset=germany-day-one")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		KPIs models.KPIs `json:"kpis"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, int64(5), resp.KPIs.TotalCases)

	rec = get(e, "/api/presets")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []config.Preset
	decode(t, rec, &listed)
	assert.Equal(t, presets, listed)
}

func TestLoadingState(t *testing.T) {
	e, h := newTestServer(nil)

	rec := get(e, "/api/dashboard")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(e, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	decode(t, rec, &health)
	assert.Equal(t, true, health["loading"])

	h.SetData(scenarioStore())
	assert.Equal(t, http.StatusOK, get(e, "/api/dashboard").Code)

	h.SetLoadError(errors.New("disk on fire"))
	rec = get(e, "/api/kpis")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dataset failed to load")
	assert.NotContains(t, rec.Body.String(), "disk on fire")
	assert.Nil(t, h.Data())
}

func TestRateLimit(t *testing.T) {
	h := NewHandler(scenarioStore())
	cfg := config.Default().Server
	cfg.RateLimit = 1
	e := NewServer(h, cfg, zerolog.Nop(), nil)

	assert.Equal(t, http.StatusOK, get(e, "/api/kpis").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(e, "/api/kpis").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.NewStore()
	h := NewHandler(scenarioStore(), WithMetrics(m))
	cfg := config.Default().Server
	cfg.RateLimit = 0
	e := NewServer(h, cfg, zerolog.Nop(), m)

	require.Equal(t, http.StatusOK, get(e, "/api/kpis").Code)
	require.Equal(t, http.StatusBadRequest, get(e, "/api/kpis?start=2021-01-02&end=2021-01-01").Code)

	rec := get(e, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `covidboard_http_requests_total{method="GET",route="/api/kpis",status="200"} 1`)
	assert.Contains(t, body, `covidboard_http_requests_total{method="GET",route="/api/kpis",status="400"} 1`)
	assert.Contains(t, body, "covidboard_compute_seconds_count 2")
}

func TestGetKPIs_CountryWithComma(t *testing.T) {
	store := engine.NewColumnStore([]models.Record{
		{Country: "Korea, South", Date: day(1), NewCases: 10},
		{Country: "Kenya", Date: day(1), NewCases: 5},
	})
	e, _ := newTestServer(store)

	tests := []struct {
		target string
		want   int64
	}{
		{target: "/api/kpis?country=Korea%2C%20South", want: 10},
		{target: "/api/kpis?country=Korea%2C%20South&strict=true", want: 10},
		{target: "/api/kpis?country=Korea%2C%20South&country=Kenya", want: 15},
		{target: "/api/kpis?countries=Kenya&country=Korea%2C%20South", want: 15},
	}
	for _, tt := range tests {
		rec := get(e, tt.target)
		require.Equal(t, http.StatusOK, rec.Code, tt.target+": "+rec.Body.String())

		var resp struct {
			KPIs models.KPIs `json:"kpis"`
		}
		decode(t, rec, &resp)
		assert.Equal(t, tt.want, resp.KPIs.TotalCases, tt.target)
	}
}

func TestGetDashboard_IfNoneMatchList(t *testing.T) {
	e, _ := newTestServer(scenarioStore())
	tag := get(e, "/api/dashboard").Header().Get(headerETag)
	require.NotEmpty(t, tag)

	for _, header := range []string{
		`"other", ` + tag,
		"W/" + tag,
		"*",
	} {
		rec := get(e, "/api/dashboard", headerIfNoneMatch, header)
		assert.Equal(t, http.StatusNotModified, rec.Code, header)
	}
	assert.Equal(t, http.StatusOK, get(e, "/api/dashboard", headerIfNoneMatch, `"other"`).Code)
}
