package engine

import (
	"sort"

	"covidboard/internal/models"
)

const topVaccinatedLimit = 5

type countryStats struct {
	Deaths     int64
	Vaccinated int64
}

// Aggregate computes the KPIs and chart payloads of a view.
func Aggregate(v *View) *models.DashboardData {
	cs := v.store
	n := v.Len()

	data := &models.DashboardData{
		Rows: n,
		Charts: models.ChartPayloads{
			CasesByDateCountry:        make([]models.SeriesPoint, 0, n),
			VaccinatedByDateCountry:   make([]models.SeriesPoint, 0, n),
			DailyTotalCases:           make([]models.DatePoint, 0),
			DeathsByCountry:           make([]models.CountryTotal, 0),
			Top5VaccinatedByCountry:   make([]models.CountryTotal, 0),
			VaccinationShareByCountry: make([]models.CountryShare, 0),
		},
	}

	// Per-country sums are indexed by dictionary ID; order remembers the
	// first time each country shows up in the view.
	stats := make([]countryStats, len(cs.CountryDict))
	seen := make([]bool, len(cs.CountryDict))
	order := make([]int32, 0)
	daily := make(map[models.Date]int64)

	// Columns are read through the view's row indexes.
	idsC := cs.CountryIDs
	dates := cs.Dates
	cases := cs.NewCases
	deaths := cs.NewDeaths
	vax := cs.Vaccinated

	for _, row := range v.rows {
		cid := idsC[row]
		d := dates[row]
		country := cs.CountryDict[cid]

		data.KPIs.TotalCases += cases[row]
		data.KPIs.TotalDeaths += deaths[row]
		data.KPIs.TotalVaccinated += vax[row]

		data.Charts.CasesByDateCountry = append(data.Charts.CasesByDateCountry,
			models.SeriesPoint{Date: d, Country: country, Value: cases[row]})
		data.Charts.VaccinatedByDateCountry = append(data.Charts.VaccinatedByDateCountry,
			models.SeriesPoint{Date: d, Country: country, Value: vax[row]})

		daily[d] += cases[row]

		if !seen[cid] {
			seen[cid] = true
			order = append(order, cid)
		}
		stats[cid].Deaths += deaths[row]
		stats[cid].Vaccinated += vax[row]
	}

	// Daily totals
	for d, total := range daily {
		data.Charts.DailyTotalCases = append(data.Charts.DailyTotalCases, models.DatePoint{Date: d, Value: total})
	}
	sort.Slice(data.Charts.DailyTotalCases, func(i, j int) bool {
		return data.Charts.DailyTotalCases[i].Date < data.Charts.DailyTotalCases[j].Date
	})

	// Country breakdowns
	vaccinated := make([]models.CountryTotal, 0, len(order))
	for _, cid := range order {
		name := cs.CountryDict[cid]
		data.Charts.DeathsByCountry = append(data.Charts.DeathsByCountry,
			models.CountryTotal{Country: name, Value: stats[cid].Deaths})
		vaccinated = append(vaccinated, models.CountryTotal{Country: name, Value: stats[cid].Vaccinated})

		share := 0.0
		if data.KPIs.TotalVaccinated > 0 {
			share = float64(stats[cid].Vaccinated) / float64(data.KPIs.TotalVaccinated)
		}
		data.Charts.VaccinationShareByCountry = append(data.Charts.VaccinationShareByCountry,
			models.CountryShare{Country: name, Value: stats[cid].Vaccinated, Share: share})
	}

	sortTotalsDesc(data.Charts.DeathsByCountry)

	sortTotalsDesc(vaccinated)
	if len(vaccinated) > topVaccinatedLimit {
		vaccinated = vaccinated[:topVaccinatedLimit]
	}
	data.Charts.Top5VaccinatedByCountry = vaccinated

	return data
}

// sortTotalsDesc orders by value, largest first. Equal values keep their
// current relative order.
func sortTotalsDesc(totals []models.CountryTotal) {
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].Value > totals[j].Value })
}
