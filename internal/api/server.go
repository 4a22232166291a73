package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gommonlog "github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"covidboard/internal/config"
	"covidboard/internal/engine"
	"covidboard/internal/export"
	"covidboard/internal/metrics"
	"covidboard/internal/render"
)

// NewServer assembles the echo instance: middleware, error mapping, JSON
// encoding, the dashboard routes and /metrics.
func NewServer(h *Handler, cfg config.ServerConfig, log zerolog.Logger, m metrics.Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// Requests are logged through zerolog below.
	e.Logger.SetLevel(gommonlog.OFF)
	e.JSONSerializer = jsonSerializer{}
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger(log))
	if m != nil {
		e.Use(metricsMiddleware(m))
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))
	}

	h.RegisterRoutes(e)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error()
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

// metricsMiddleware counts requests by route template. Errors are resolved
// here so the recorded status is the one the client receives.
func metricsMiddleware(m metrics.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.IncRequests(route, c.Request().Method, c.Response().Status)
			m.ObserveRequest(route, time.Since(start))
			return nil
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, msg := statusFor(err)
		if code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, errorResponse{Error: msg})
		}
		if err != nil {
			log.Error().Err(err).Msg("unable to write error response")
		}
	}
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	var (
		httpErr    *echo.HTTPError
		rangeErr   *engine.InvalidRangeError
		countryErr *engine.UnknownCountryError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code, fmt.Sprint(httpErr.Message)
	case errors.As(err, &rangeErr), errors.As(err, &countryErr):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, render.ErrUnknownChart):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, render.ErrNoData):
		return http.StatusUnprocessableEntity, err.Error()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// jsonSerializer encodes responses with goccy/go-json.
type jsonSerializer struct{}

func (jsonSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c echo.Context, i interface{}) error {
	if err := json.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body").SetInternal(err)
	}
	return nil
}
