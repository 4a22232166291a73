package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidboard/internal/models"
)

func day(d int) models.Date {
	return models.NewDate(2021, time.January, d)
}

// Scenario:
// Row 0: A, Jan 1, cases 10, deaths 1, vax 100
// Row 1: B, Jan 1, cases 5,  deaths 0, vax 50
// Row 2: A, Jan 2, cases 7,  deaths 2, vax 120
func scenarioStore() *ColumnStore {
	return &ColumnStore{
		Dates:      []models.Date{day(1), day(1), day(2)},
		NewCases:   []int64{10, 5, 7},
		NewDeaths:  []int64{1, 0, 2},
		Vaccinated: []int64{100, 50, 120},

		CountryIDs:  []int32{0, 1, 0},
		CountryDict: []string{"A", "B"},
	}
}

func TestCompute_Scenario(t *testing.T) {
	data, err := Compute(scenarioStore(), models.Criteria{
		Countries: []string{"A", "B"},
		Start:     day(1),
		End:       day(2),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, data.Rows)
	assert.Equal(t, models.KPIs{TotalCases: 22, TotalDeaths: 3, TotalVaccinated: 270}, data.KPIs)
	assert.Equal(t, []models.DatePoint{{Date: day(1), Value: 15}, {Date: day(2), Value: 7}}, data.Charts.DailyTotalCases)
	assert.Equal(t, []models.CountryTotal{{Country: "A", Value: 3}, {Country: "B", Value: 0}}, data.Charts.DeathsByCountry)
	assert.Equal(t, []models.CountryTotal{{Country: "A", Value: 220}, {Country: "B", Value: 50}}, data.Charts.Top5VaccinatedByCountry)

	assert.Equal(t, []models.SeriesPoint{
		{Date: day(1), Country: "A", Value: 10},
		{Date: day(1), Country: "B", Value: 5},
		{Date: day(2), Country: "A", Value: 7},
	}, data.Charts.CasesByDateCountry)
	assert.Equal(t, []models.SeriesPoint{
		{Date: day(1), Country: "A", Value: 100},
		{Date: day(1), Country: "B", Value: 50},
		{Date: day(2), Country: "A", Value: 120},
	}, data.Charts.VaccinatedByDateCountry)

	require.Len(t, data.Charts.VaccinationShareByCountry, 2)
	assert.Equal(t, "A", data.Charts.VaccinationShareByCountry[0].Country)
	assert.Equal(t, int64(220), data.Charts.VaccinationShareByCountry[0].Value)
	assert.InDelta(t, 220.0/270.0, data.Charts.VaccinationShareByCountry[0].Share, 1e-9)
	assert.InDelta(t, 50.0/270.0, data.Charts.VaccinationShareByCountry[1].Share, 1e-9)
}

func TestCompute_SingleCountrySingleDay(t *testing.T) {
	data, err := Compute(scenarioStore(), models.Criteria{
		Countries: []string{"A"},
		Start:     day(1),
		End:       day(1),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, data.Rows)
	assert.Equal(t, int64(10), data.KPIs.TotalCases)
	assert.Equal(t, []models.CountryTotal{{Country: "A", Value: 1}}, data.Charts.DeathsByCountry)
}

func TestCompute_InvalidRange(t *testing.T) {
	data, err := Compute(scenarioStore(), models.Criteria{
		Countries: []string{"A"},
		Start:     day(2),
		End:       day(1),
	})
	assert.Nil(t, data)

	var rangeErr *InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, day(2), rangeErr.Start)
	assert.Equal(t, day(1), rangeErr.End)
}

func TestCompute_EmptyCountries(t *testing.T) {
	data, err := Compute(scenarioStore(), models.Criteria{Start: day(1), End: day(2)})
	require.NoError(t, err)

	assert.Equal(t, models.KPIs{}, data.KPIs)
	assert.Equal(t, 0, data.Rows)
	assert.NotNil(t, data.Charts.CasesByDateCountry)
	assert.Empty(t, data.Charts.CasesByDateCountry)
	assert.Empty(t, data.Charts.VaccinatedByDateCountry)
	assert.Empty(t, data.Charts.DailyTotalCases)
	assert.Empty(t, data.Charts.DeathsByCountry)
	assert.Empty(t, data.Charts.Top5VaccinatedByCountry)
	assert.NotNil(t, data.Charts.VaccinationShareByCountry)
	assert.Empty(t, data.Charts.VaccinationShareByCountry)
}

func TestAggregate_ZeroVaccinatedShare(t *testing.T) {
	store := NewColumnStore([]models.Record{
		{Country: "A", Date: day(1)},
		{Country: "B", Date: day(1)},
	})
	data := Aggregate(store.All())

	require.Len(t, data.Charts.VaccinationShareByCountry, 2)
	for _, s := range data.Charts.VaccinationShareByCountry {
		assert.Zero(t, s.Share)
	}
}

func TestAggregate_Top5TruncatesWithStableTies(t *testing.T) {
	// F ties with E at the 5th-place boundary but appears later, so it is cut.
	records := []models.Record{
		{Country: "A", Date: day(1), Vaccinated: 10},
		{Country: "B", Date: day(1), Vaccinated: 60},
		{Country: "C", Date: day(1), Vaccinated: 30},
		{Country: "D", Date: day(1), Vaccinated: 50},
		{Country: "E", Date: day(1), Vaccinated: 20},
		{Country: "F", Date: day(1), Vaccinated: 20},
		{Country: "A", Date: day(2), Vaccinated: 15},
	}
	data := Aggregate(NewColumnStore(records).All())

	top := data.Charts.Top5VaccinatedByCountry
	require.Len(t, top, 5)
	assert.Equal(t, []models.CountryTotal{
		{Country: "B", Value: 60},
		{Country: "D", Value: 50},
		{Country: "C", Value: 30},
		{Country: "A", Value: 25},
		{Country: "E", Value: 20},
	}, top)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Value, top[i].Value)
	}

	// All six countries remain in the share breakdown, in first-seen order.
	require.Len(t, data.Charts.VaccinationShareByCountry, 6)
	assert.Equal(t, "A", data.Charts.VaccinationShareByCountry[0].Country)
	assert.Equal(t, "F", data.Charts.VaccinationShareByCountry[5].Country)
}

func TestAggregate_DeathsTiesKeepFirstSeenOrder(t *testing.T) {
	records := []models.Record{
		{Country: "Z", Date: day(1), NewDeaths: 4},
		{Country: "Y", Date: day(1), NewDeaths: 9},
		{Country: "X", Date: day(1), NewDeaths: 4},
	}
	data := Aggregate(NewColumnStore(records).All())

	assert.Equal(t, []models.CountryTotal{
		{Country: "Y", Value: 9},
		{Country: "Z", Value: 4},
		{Country: "X", Value: 4},
	}, data.Charts.DeathsByCountry)
}

func TestAggregate_DailyTotalsSortedByDate(t *testing.T) {
	records := []models.Record{
		{Country: "A", Date: day(3), NewCases: 1},
		{Country: "B", Date: day(1), NewCases: 2},
		{Country: "A", Date: day(2), NewCases: 3},
		{Country: "B", Date: day(3), NewCases: 4},
	}
	data := Aggregate(NewColumnStore(records).All())

	assert.Equal(t, []models.DatePoint{
		{Date: day(1), Value: 2},
		{Date: day(2), Value: 3},
		{Date: day(3), Value: 5},
	}, data.Charts.DailyTotalCases)
}

func TestAggregate_DeathsPartitionCountries(t *testing.T) {
	store := scenarioStore()
	view, err := Filter(store.All(), store.DefaultCriteria())
	require.NoError(t, err)

	data := Aggregate(view)
	counts := map[string]int{}
	for _, d := range data.Charts.DeathsByCountry {
		counts[d.Country]++
	}
	for i := 0; i < view.Len(); i++ {
		assert.Equal(t, 1, counts[view.Record(i).Country])
	}
	assert.Len(t, counts, 2)
}
