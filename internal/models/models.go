package models

// Record is one row of the dataset.
type Record struct {
	Country    string `json:"country"`
	Date       Date   `json:"date"`
	NewCases   int64  `json:"new_cases"`
	NewDeaths  int64  `json:"new_deaths"`
	Vaccinated int64  `json:"vaccinated"`
}

// Criteria selects the rows a dashboard pass works on.
// Countries has set semantics; Start and End are inclusive.
type Criteria struct {
	Countries []string `json:"countries"`
	Start     Date     `json:"start"`
	End       Date     `json:"end"`

	// StrictCountries turns unknown country names into an error instead of
	// silently matching nothing.
	StrictCountries bool `json:"-"`
}

type DashboardData struct {
	Criteria Criteria      `json:"criteria"`
	Rows     int           `json:"rows"`
	KPIs     KPIs          `json:"kpis"`
	Charts   ChartPayloads `json:"charts"`
}

type KPIs struct {
	TotalCases      int64 `json:"total_cases"`
	TotalDeaths     int64 `json:"total_deaths"`
	TotalVaccinated int64 `json:"total_vaccinated"`
}

// ChartPayloads is the data behind the six dashboard charts.
type ChartPayloads struct {
	CasesByDateCountry        []SeriesPoint  `json:"cases_by_date_country"`
	VaccinatedByDateCountry   []SeriesPoint  `json:"vaccinated_by_date_country"`
	DailyTotalCases           []DatePoint    `json:"daily_total_cases"`
	DeathsByCountry           []CountryTotal `json:"deaths_by_country"`
	Top5VaccinatedByCountry   []CountryTotal `json:"top5_vaccinated_by_country"`
	VaccinationShareByCountry []CountryShare `json:"vaccination_share_by_country"`
}

// SeriesPoint is a single record's value in a per-country time series.
type SeriesPoint struct {
	Date    Date   `json:"date"`
	Country string `json:"country"`
	Value   int64  `json:"value"`
}

type DatePoint struct {
	Date  Date  `json:"date"`
	Value int64 `json:"value"`
}

type CountryTotal struct {
	Country string `json:"country"`
	Value   int64  `json:"value"`
}

type CountryShare struct {
	Country string  `json:"country"`
	Value   int64   `json:"value"`
	Share   float64 `json:"share"`
}

// DatasetMeta describes a loaded dataset to the presentation layer.
type DatasetMeta struct {
	Rows      int           `json:"rows"`
	MinDate   Date          `json:"min_date"`
	MaxDate   Date          `json:"max_date"`
	Countries []CountryInfo `json:"countries"`

	// VaccinatedSemantics records how VACCINATED is treated: values are
	// summed across dates, which assumes daily counts.
	VaccinatedSemantics string `json:"vaccinated_semantics"`
}

type CountryInfo struct {
	Name string `json:"name"`
	ISO3 string `json:"iso3,omitempty"`
}
