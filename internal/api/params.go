package api

import (
	"encoding/binary"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/zeebo/xxh3"

	"covidboard/internal/config"
	"covidboard/internal/engine"
	"covidboard/internal/models"
)

const (
	headerETag        = "ETag"
	headerIfNoneMatch = "If-None-Match"
)

// criteria builds the filter for a request. Missing parameters fall back to
// the dashboard defaults: every country over the whole date range.
func (h *Handler) criteria(c echo.Context, store *engine.ColumnStore) (models.Criteria, error) {
	crit := store.DefaultCriteria()
	q := c.QueryParams()

	if name := q.Get("preset"); name != "" {
		p, ok := config.FindPreset(h.presets, name)
		if !ok {
			return crit, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown preset %q", name))
		}
		var err error
		if crit, err = p.Apply(crit); err != nil {
			return crit, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	// An explicit but empty country parameter selects nothing. Each country
	// value is one name, since names may contain commas; only countries is a
	// comma separated list.
	_, hasCountry := q["country"]
	_, hasCountries := q["countries"]
	if hasCountry || hasCountries {
		crit.Countries = append(trimList(q["country"]), splitList(q["countries"])...)
	}

	for _, bound := range []struct {
		param string
		dst   *models.Date
	}{{"start", &crit.Start}, {"end", &crit.End}} {
		s := q.Get(bound.param)
		if s == "" {
			continue
		}
		d, err := models.ParseDate(s)
		if err != nil {
			return crit, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s: %v", bound.param, err))
		}
		*bound.dst = d
	}

	if s := q.Get("strict"); s != "" {
		strict, err := strconv.ParseBool(s)
		if err != nil {
			return crit, echo.NewHTTPError(http.StatusBadRequest, "strict must be a boolean")
		}
		crit.StrictCountries = strict
	}
	return crit, nil
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// etag identifies a dashboard result: the dataset content plus the
// normalised criteria.
func etag(store *engine.ColumnStore, crit models.Criteria) string {
	countries := append([]string(nil), crit.Countries...)
	sort.Strings(countries)

	h := xxh3.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], store.Checksum)
	h.Write(buf[:])
	for _, c := range countries {
		h.WriteString(c)
		h.Write([]byte{0})
	}
	fmt.Fprintf(h, "%d|%d|%t", crit.Start, crit.End, crit.StrictCountries)
	return fmt.Sprintf("\"%016x\"", h.Sum64())
}

// etagMatches reports whether an If-None-Match header value names tag. The
// header is a list of entity tags or "*"; weak tags compare by their opaque
// part.
func etagMatches(header, tag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == tag {
			return true
		}
	}
	return false
}
