package render

import (
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"covidboard/internal/models"
)

// ReportWriter prints a dashboard pass to a terminal or a pipe.
type ReportWriter interface {
	Write(data *models.DashboardData, records []models.Record) error
}

type TextWriter struct {
	w     io.Writer
	color bool
}

type JSONWriter struct {
	w io.Writer
}

func NewReportWriter(w io.Writer, format string, colorize bool) ReportWriter {
	switch format {
	case "json":
		return JSONWriter{w}
	}
	return TextWriter{w, colorize}
}

func (w JSONWriter) Write(data *models.DashboardData, records []models.Record) error {
	out := struct {
		*models.DashboardData
		Formatted FormattedKPIs    `json:"formatted"`
		Records   []models.Record `json:"records,omitempty"`
	}{data, FormatKPIs(data.KPIs), records}

	enc := json.NewEncoder(w.w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Write prints the KPIs, the per-date and per-country charts as tables and,
// when records is non-nil, the raw rows.
func (w TextWriter) Write(data *models.DashboardData, records []models.Record) error {
	k := FormatKPIs(data.KPIs)
	w.heading("COVID-19 Dashboard")
	if err := w.table([]string{"Total Cases", "Total Deaths", "Total Vaccinated"},
		[][]string{{k.TotalCases, k.TotalDeaths, k.TotalVaccinated}}); err != nil {
		return err
	}

	w.heading(chartDefs[DailyCases].Title)
	rows := make([][]string, 0, len(data.Charts.DailyTotalCases))
	for _, p := range data.Charts.DailyTotalCases {
		rows = append(rows, []string{p.Date.String(), humanize.Comma(p.Value)})
	}
	if err := w.table([]string{"Date", "New Cases"}, rows); err != nil {
		return err
	}

	w.heading(chartDefs[DeathsByCountry].Title)
	if err := w.table([]string{"Country", "Deaths"}, totalsRows(data.Charts.DeathsByCountry)); err != nil {
		return err
	}

	w.heading(chartDefs[TopVaccinated].Title)
	if err := w.table([]string{"Country", "Vaccinated"}, totalsRows(data.Charts.Top5VaccinatedByCountry)); err != nil {
		return err
	}

	w.heading(chartDefs[VaccinationShare].Title)
	rows = make([][]string, 0, len(data.Charts.VaccinationShareByCountry))
	for _, s := range data.Charts.VaccinationShareByCountry {
		rows = append(rows, []string{s.Country, humanize.Comma(s.Value), FormatShare(s.Share)})
	}
	if err := w.table([]string{"Country", "Vaccinated", "Share"}, rows); err != nil {
		return err
	}

	if records == nil {
		return nil
	}
	w.heading("Raw Data Preview")
	return w.records(records)
}

// WriteRecords prints records as a plain table.
func WriteRecords(w io.Writer, records []models.Record) error {
	return TextWriter{w: w}.records(records)
}

func (w TextWriter) records(records []models.Record) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Date.String(),
			r.Country,
			strconv.FormatInt(r.NewCases, 10),
			strconv.FormatInt(r.NewDeaths, 10),
			strconv.FormatInt(r.Vaccinated, 10),
		})
	}
	return w.table([]string{"Date", "Country", "New Cases", "New Deaths", "Vaccinated"}, rows)
}

func (w TextWriter) heading(s string) {
	if w.color {
		s = color.Bold.Sprint(color.FgCyan.Sprint(s))
	}
	io.WriteString(w.w, "\n"+s+"\n")
}

func (w TextWriter) table(header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w.w)
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	table.Header(cells...)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func totalsRows(totals []models.CountryTotal) [][]string {
	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []string{t.Country, humanize.Comma(t.Value)})
	}
	return rows
}
