// Package render turns dashboard results into things people look at: chart
// payloads, PNG charts and terminal reports.
package render

import (
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart/v2"

	"covidboard/internal/models"
)

type ChartName string

const (
	CasesOverTime        ChartName = "cases-over-time"
	VaccinationsOverTime ChartName = "vaccinations-over-time"
	DailyCases           ChartName = "daily-cases"
	DeathsByCountry      ChartName = "deaths-by-country"
	TopVaccinated        ChartName = "top-vaccinated"
	VaccinationShare     ChartName = "vaccination-share"
)

type ChartKind string

const (
	KindLine ChartKind = "line"
	KindBar  ChartKind = "bar"
	KindPie  ChartKind = "pie"
)

var (
	ErrUnknownChart = errors.New("unknown chart")
	ErrNoData       = errors.New("not enough data to draw chart")
)

type chartDef struct {
	Title string
	Kind  ChartKind
}

var chartDefs = map[ChartName]chartDef{
	CasesOverTime:        {Title: "New COVID-19 Cases Over Time", Kind: KindLine},
	VaccinationsOverTime: {Title: "Vaccinations Over Time", Kind: KindLine},
	DailyCases:           {Title: "Total Daily Cases", Kind: KindBar},
	DeathsByCountry:      {Title: "Total Deaths by Country", Kind: KindBar},
	TopVaccinated:        {Title: "Top 5 Vaccinated Countries", Kind: KindBar},
	VaccinationShare:     {Title: "Vaccination Distribution", Kind: KindPie},
}

// Charts lists the dashboard charts in display order.
func Charts() []ChartName {
	return []ChartName{CasesOverTime, VaccinationsOverTime, DailyCases, DeathsByCountry, TopVaccinated, VaccinationShare}
}

// Chart is a single chart payload as served to a front-end.
type Chart struct {
	Name  ChartName   `json:"name"`
	Title string      `json:"title"`
	Kind  ChartKind   `json:"kind"`
	Data  interface{} `json:"data"`
}

func Lookup(name string, data *models.DashboardData) (Chart, error) {
	n := ChartName(name)
	def, ok := chartDefs[n]
	if !ok {
		return Chart{}, errors.Wrapf(ErrUnknownChart, "%q", name)
	}

	c := Chart{Name: n, Title: def.Title, Kind: def.Kind}
	switch n {
	case CasesOverTime:
		c.Data = data.Charts.CasesByDateCountry
	case VaccinationsOverTime:
		c.Data = data.Charts.VaccinatedByDateCountry
	case DailyCases:
		c.Data = data.Charts.DailyTotalCases
	case DeathsByCountry:
		c.Data = data.Charts.DeathsByCountry
	case TopVaccinated:
		c.Data = data.Charts.Top5VaccinatedByCountry
	case VaccinationShare:
		c.Data = data.Charts.VaccinationShareByCountry
	}
	return c, nil
}

const (
	chartWidth  = 1024
	chartHeight = 480
)

// RenderPNG draws one chart of data as a PNG image.
func RenderPNG(w io.Writer, name string, data *models.DashboardData) error {
	c, err := Lookup(name, data)
	if err != nil {
		return err
	}

	switch c.Name {
	case CasesOverTime, VaccinationsOverTime:
		return renderTimeSeries(w, c.Title, c.Data.([]models.SeriesPoint))
	case DailyCases:
		points := c.Data.([]models.DatePoint)
		bars := make([]chart.Value, 0, len(points))
		for _, p := range points {
			bars = append(bars, chart.Value{Label: p.Date.String(), Value: float64(p.Value)})
		}
		return renderBars(w, c.Title, bars)
	case DeathsByCountry, TopVaccinated:
		return renderBars(w, c.Title, countryValues(c.Data.([]models.CountryTotal)))
	case VaccinationShare:
		shares := c.Data.([]models.CountryShare)
		values := make([]chart.Value, 0, len(shares))
		for _, s := range shares {
			if s.Value > 0 {
				values = append(values, chart.Value{Label: s.Country, Value: float64(s.Value)})
			}
		}
		return renderPie(w, c.Title, values)
	}
	return errors.Wrapf(ErrUnknownChart, "%q", name)
}

// renderTimeSeries draws one line per country, in first-seen order.
func renderTimeSeries(w io.Writer, title string, points []models.SeriesPoint) error {
	byCountry := make(map[string]*chart.TimeSeries)
	order := make([]string, 0)
	dates := make(map[models.Date]bool)
	var maxY int64

	for _, p := range points {
		s, ok := byCountry[p.Country]
		if !ok {
			s = &chart.TimeSeries{Name: p.Country}
			byCountry[p.Country] = s
			order = append(order, p.Country)
		}
		s.XValues = append(s.XValues, p.Date.Time())
		s.YValues = append(s.YValues, float64(p.Value))
		dates[p.Date] = true
		if p.Value > maxY {
			maxY = p.Value
		}
	}
	if len(dates) < 2 {
		return ErrNoData
	}

	series := make([]chart.Series, 0, len(order))
	for _, name := range order {
		series = append(series, *byCountry[name])
	}

	graph := chart.Chart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{ValueFormatter: dateFormatter},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: yMax(maxY)},
			ValueFormatter: countFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return errors.Wrap(graph.Render(chart.PNG, w), "unable to render time series")
}

func renderBars(w io.Writer, title string, bars []chart.Value) error {
	if len(bars) == 0 {
		return ErrNoData
	}
	var maxY float64
	for _, b := range bars {
		if b.Value > maxY {
			maxY = b.Value
		}
	}

	graph := chart.BarChart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 48},
		},
		BarWidth:   barWidth(len(bars)),
		BarSpacing: barWidth(len(bars)) / 2,
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: yMax(int64(maxY))},
			ValueFormatter: countFormatter,
		},
		Bars: bars,
	}
	return errors.Wrap(graph.Render(chart.PNG, w), "unable to render bar chart")
}

func renderPie(w io.Writer, title string, values []chart.Value) error {
	if len(values) == 0 {
		return ErrNoData
	}
	graph := chart.PieChart{
		Title:  title,
		Width:  chartHeight,
		Height: chartHeight,
		Values: values,
	}
	return errors.Wrap(graph.Render(chart.PNG, w), "unable to render pie chart")
}

func countryValues(totals []models.CountryTotal) []chart.Value {
	out := make([]chart.Value, 0, len(totals))
	for _, t := range totals {
		out = append(out, chart.Value{Label: t.Country, Value: float64(t.Value)})
	}
	return out
}

// barWidth shrinks bars as their number grows so the chart stays readable.
func barWidth(n int) int {
	width := (chartWidth - 128) / (n * 2)
	switch {
	case width > 80:
		return 80
	case width < 4:
		return 4
	}
	return width
}

// yMax leaves headroom above the tallest value and keeps the axis range
// non-empty when every value is zero.
func yMax(v int64) float64 {
	if v <= 0 {
		return 1
	}
	return float64(v) * 1.1
}

func dateFormatter(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02")
	case float64:
		return time.Unix(0, int64(t)).UTC().Format("2006-01-02")
	}
	return ""
}

func countFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return humanize.Comma(int64(f))
	}
	return ""
}
