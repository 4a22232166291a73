// Package export writes filtered dataset rows in downloadable formats.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"covidboard/internal/engine"
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatArrow Format = "arrow"
)

var ErrUnknownFormat = errors.New("unknown export format")

// Columns in the order every format writes them; these match the input file.
var Columns = []string{
	engine.ColDate,
	engine.ColCountry,
	engine.ColNewCases,
	engine.ColNewDeaths,
	engine.ColVaccinated,
}

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatArrow:
		return FormatArrow, nil
	}
	return "", errors.Wrapf(ErrUnknownFormat, "%q", s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatArrow:
		return "application/vnd.apache.arrow.stream"
	}
	return "text/csv"
}

func (f Format) Extension() string {
	if f == FormatArrow {
		return "arrows"
	}
	return string(f)
}

func Write(w io.Writer, f Format, v *engine.View) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, v)
	case FormatXLSX:
		return WriteXLSX(w, v)
	case FormatArrow:
		return WriteArrow(w, v)
	}
	return errors.Wrapf(ErrUnknownFormat, "%q", f)
}

func WriteCSV(w io.Writer, v *engine.View) error {
	wtr := csv.NewWriter(w)
	if err := wtr.Write(Columns); err != nil {
		return err
	}
	row := make([]string, len(Columns))
	for i := 0; i < v.Len(); i++ {
		r := v.Record(i)
		row[0] = r.Date.String()
		row[1] = r.Country
		row[2] = strconv.FormatInt(r.NewCases, 10)
		row[3] = strconv.FormatInt(r.NewDeaths, 10)
		row[4] = strconv.FormatInt(r.Vaccinated, 10)
		if err := wtr.Write(row); err != nil {
			return err
		}
	}
	wtr.Flush()
	return wtr.Error()
}
