package engine

import (
	"covidboard/internal/models"
)

// View is an ordered selection of rows from a ColumnStore.
type View struct {
	store *ColumnStore
	rows  []int32
}

func (v *View) Len() int { return len(v.rows) }

func (v *View) Store() *ColumnStore { return v.store }

func (v *View) Record(i int) models.Record {
	return v.store.Record(int(v.rows[i]))
}

// Records materialises rows [offset, offset+limit) of the view. A limit
// below zero means "to the end".
func (v *View) Records(offset, limit int) []models.Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(v.rows) {
		return []models.Record{}
	}
	end := len(v.rows)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]models.Record, 0, end-offset)
	for i := offset; i < end; i++ {
		out = append(out, v.Record(i))
	}
	return out
}

// Filter keeps the rows of src whose country is selected and whose date lies
// in [c.Start, c.End]. Source order is preserved.
func Filter(src *View, c models.Criteria) (*View, error) {
	if c.Start > c.End {
		return nil, &InvalidRangeError{Start: c.Start, End: c.End}
	}

	cs := src.store
	selected := make([]bool, len(cs.CountryDict))
	ids := make(map[string]int32, len(cs.CountryDict))
	for id, name := range cs.CountryDict {
		ids[name] = int32(id)
	}

	var unknown []string
	matchable := false
	for _, name := range c.Countries {
		id, ok := ids[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		selected[id] = true
		matchable = true
	}
	if c.StrictCountries && len(unknown) > 0 {
		return nil, &UnknownCountryError{Countries: unknown}
	}

	out := &View{store: cs, rows: make([]int32, 0)}
	if !matchable {
		return out, nil
	}

	countryIDs := cs.CountryIDs
	dates := cs.Dates
	for _, row := range src.rows {
		d := dates[row]
		if selected[countryIDs[row]] && d >= c.Start && d <= c.End {
			out.rows = append(out.rows, row)
		}
	}
	return out, nil
}
