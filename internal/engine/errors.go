package engine

import (
	"fmt"
	"strings"

	"covidboard/internal/models"
)

// InvalidRangeError reports a date range whose start is after its end.
type InvalidRangeError struct {
	Start, End models.Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s", e.Start, e.End)
}

// UnknownCountryError lists requested countries absent from the dataset.
// Only returned when the criteria ask for strict country matching.
type UnknownCountryError struct {
	Countries []string
}

func (e *UnknownCountryError) Error() string {
	return fmt.Sprintf("unknown countries: %s", strings.Join(e.Countries, ", "))
}

// MissingColumnError reports required columns absent from the input header.
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// ParseError reports a malformed value in the input file.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: column %s: cannot parse %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
