package render

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"covidboard/internal/models"
)

// FormattedKPIs are the KPI values as the dashboard prints them,
// comma-grouped.
type FormattedKPIs struct {
	TotalCases      string `json:"total_cases"`
	TotalDeaths     string `json:"total_deaths"`
	TotalVaccinated string `json:"total_vaccinated"`
}

func FormatKPIs(k models.KPIs) FormattedKPIs {
	return FormattedKPIs{
		TotalCases:      humanize.Comma(k.TotalCases),
		TotalDeaths:     humanize.Comma(k.TotalDeaths),
		TotalVaccinated: humanize.Comma(k.TotalVaccinated),
	}
}

// FormatShare renders a 0..1 share as a percentage with one decimal.
func FormatShare(share float64) string {
	return fmt.Sprintf("%.1f%%", share*100)
}
