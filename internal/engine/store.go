package engine

import (
	"covidboard/internal/models"
)

// ColumnStore holds the dataset in Struct-of-Arrays format.
// It is never mutated once loaded.
type ColumnStore struct {
	// Data Columns (Flat Arrays)
	Dates      []models.Date
	NewCases   []int64
	NewDeaths  []int64
	Vaccinated []int64

	// Dictionary Encoded IDs (0..N)
	CountryIDs []int32

	// Dictionary (ID -> String), in order of first appearance
	CountryDict []string

	// Checksum identifies the source content (xxh3 of the file bytes).
	Checksum uint64
}

// NewColumnStore builds a store from records, keeping their order.
func NewColumnStore(records []models.Record) *ColumnStore {
	cs := &ColumnStore{
		Dates:      make([]models.Date, len(records)),
		NewCases:   make([]int64, len(records)),
		NewDeaths:  make([]int64, len(records)),
		Vaccinated: make([]int64, len(records)),
		CountryIDs: make([]int32, len(records)),
	}
	ids := make(map[string]int32)
	for i, r := range records {
		id, ok := ids[r.Country]
		if !ok {
			id = int32(len(cs.CountryDict))
			cs.CountryDict = append(cs.CountryDict, r.Country)
			ids[r.Country] = id
		}
		cs.CountryIDs[i] = id
		cs.Dates[i] = r.Date
		cs.NewCases[i] = r.NewCases
		cs.NewDeaths[i] = r.NewDeaths
		cs.Vaccinated[i] = r.Vaccinated
	}
	return cs
}

func (cs *ColumnStore) Len() int { return len(cs.Dates) }

func (cs *ColumnStore) Record(row int) models.Record {
	return models.Record{
		Country:    cs.CountryDict[cs.CountryIDs[row]],
		Date:       cs.Dates[row],
		NewCases:   cs.NewCases[row],
		NewDeaths:  cs.NewDeaths[row],
		Vaccinated: cs.Vaccinated[row],
	}
}

// Countries returns the distinct countries in order of first appearance.
func (cs *ColumnStore) Countries() []string {
	out := make([]string, len(cs.CountryDict))
	copy(out, cs.CountryDict)
	return out
}

// DateBounds returns the earliest and latest dates. Both are zero for an
// empty store.
func (cs *ColumnStore) DateBounds() (models.Date, models.Date) {
	if len(cs.Dates) == 0 {
		return 0, 0
	}
	lo, hi := cs.Dates[0], cs.Dates[0]
	for _, d := range cs.Dates[1:] {
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	return lo, hi
}

// DefaultCriteria selects every country over the full date range.
func (cs *ColumnStore) DefaultCriteria() models.Criteria {
	lo, hi := cs.DateBounds()
	return models.Criteria{Countries: cs.Countries(), Start: lo, End: hi}
}

// All returns a view over every row.
func (cs *ColumnStore) All() *View {
	rows := make([]int32, cs.Len())
	for i := range rows {
		rows[i] = int32(i)
	}
	return &View{store: cs, rows: rows}
}
