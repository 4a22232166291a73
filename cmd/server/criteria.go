package main

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"

	"covidboard/internal/config"
	"covidboard/internal/engine"
	"covidboard/internal/models"
)

// criteriaOptions mirrors the dashboard's sidebar: empty values keep the
// defaults of all countries over the whole date range.
type criteriaOptions struct {
	Preset       string
	Countries    []string
	CountriesSet bool
	Start        string
	End          string
	Strict       bool
}

func buildCriteria(store *engine.ColumnStore, presets []config.Preset, opts criteriaOptions) (models.Criteria, error) {
	crit := store.DefaultCriteria()

	if opts.Preset != "" {
		p, ok := config.FindPreset(presets, opts.Preset)
		if !ok {
			return crit, errors.Errorf("unknown preset %q", opts.Preset)
		}
		var err error
		if crit, err = p.Apply(crit); err != nil {
			return crit, err
		}
	}
	if opts.CountriesSet {
		crit.Countries = cleanList(opts.Countries)
	}
	if opts.Start != "" {
		d, err := models.ParseDate(opts.Start)
		if err != nil {
			return crit, errors.Wrap(err, "start")
		}
		crit.Start = d
	}
	if opts.End != "" {
		d, err := models.ParseDate(opts.End)
		if err != nil {
			return crit, errors.Wrap(err, "end")
		}
		crit.End = d
	}
	crit.StrictCountries = opts.Strict
	return crit, nil
}

// cleanList trims values and drops empty ones. The flag parser has already
// split the comma separated form, honouring quotes such as "Korea, South".
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseCountryList splits a typed list of countries the way CSV does, so a
// name containing a comma can be quoted: Kenya, "Korea, South".
func parseCountryList(s string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(s))
	r.TrimLeadingSpace = true
	fields, err := r.Read()
	if err == io.EOF {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "country list")
	}
	return cleanList(fields), nil
}
