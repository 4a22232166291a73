package export

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"covidboard/internal/engine"
)

const (
	rawSheet     = "Raw Data"
	summarySheet = "Summary"
)

// WriteXLSX writes a workbook with the filtered rows and a KPI summary sheet.
func WriteXLSX(w io.Writer, v *engine.View) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rawSheet); err != nil {
		return errors.Wrap(err, "unable to name sheet")
	}
	for i, header := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(rawSheet, cell, header); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(rawSheet, "A", "E", 16); err != nil {
		return err
	}

	for i := 0; i < v.Len(); i++ {
		r := v.Record(i)
		row := []interface{}{r.Date.String(), r.Country, r.NewCases, r.NewDeaths, r.Vaccinated}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(rawSheet, cell, &row); err != nil {
			return errors.Wrapf(err, "unable to write row %d", i+2)
		}
	}

	data := engine.Aggregate(v)
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	summary := [][]interface{}{
		{"Metric", "Value"},
		{"Total Cases", data.KPIs.TotalCases},
		{"Total Deaths", data.KPIs.TotalDeaths},
		{"Total Vaccinated", data.KPIs.TotalVaccinated},
		{"Rows", data.Rows},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	return errors.Wrap(f.Write(w), "unable to write workbook")
}
