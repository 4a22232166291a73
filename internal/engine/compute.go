package engine

import (
	"covidboard/internal/models"
)

// Compute runs one dashboard pass: filter the whole store by c, then
// aggregate. It either returns a complete result or a typed error.
func Compute(cs *ColumnStore, c models.Criteria) (*models.DashboardData, error) {
	view, err := Filter(cs.All(), c)
	if err != nil {
		return nil, err
	}
	data := Aggregate(view)
	data.Criteria = c
	return data, nil
}

// Meta describes the store for the presentation layer.
func Meta(cs *ColumnStore, isoCode func(string) string) models.DatasetMeta {
	lo, hi := cs.DateBounds()
	meta := models.DatasetMeta{
		Rows:                cs.Len(),
		MinDate:             lo,
		MaxDate:             hi,
		Countries:           make([]models.CountryInfo, 0, len(cs.CountryDict)),
		VaccinatedSemantics: "summed-as-daily",
	}
	for _, name := range cs.CountryDict {
		info := models.CountryInfo{Name: name}
		if isoCode != nil {
			info.ISO3 = isoCode(name)
		}
		meta.Countries = append(meta.Countries, info)
	}
	return meta
}
