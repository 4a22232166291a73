package export

import (
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/pkg/errors"

	"covidboard/internal/engine"
)

// ArrowSchema is the record batch layout of the Arrow stream export.
var ArrowSchema = arrow.NewSchema([]arrow.Field{
	{Name: engine.ColDate, Type: arrow.FixedWidthTypes.Date32},
	{Name: engine.ColCountry, Type: &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.BinaryTypes.String}},
	{Name: engine.ColNewCases, Type: arrow.PrimitiveTypes.Int64},
	{Name: engine.ColNewDeaths, Type: arrow.PrimitiveTypes.Int64},
	{Name: engine.ColVaccinated, Type: arrow.PrimitiveTypes.Int64},
}, nil)

// WriteArrow writes the view as a single record batch in the Arrow IPC
// stream format. The country column stays dictionary encoded.
func WriteArrow(w io.Writer, v *engine.View) error {
	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, ArrowSchema)
	defer b.Release()

	dates := b.Field(0).(*array.Date32Builder)
	countries := b.Field(1).(*array.BinaryDictionaryBuilder)
	cases := b.Field(2).(*array.Int64Builder)
	deaths := b.Field(3).(*array.Int64Builder)
	vax := b.Field(4).(*array.Int64Builder)

	for i := 0; i < v.Len(); i++ {
		r := v.Record(i)
		dates.Append(arrow.Date32FromTime(r.Date.Time()))
		if err := countries.AppendString(r.Country); err != nil {
			return errors.Wrap(err, "unable to append country")
		}
		cases.Append(r.NewCases)
		deaths.Append(r.NewDeaths)
		vax.Append(r.Vaccinated)
	}

	rec := b.NewRecord()
	defer rec.Release()

	wtr := ipc.NewWriter(w, ipc.WithSchema(ArrowSchema), ipc.WithAllocator(mem))
	if err := wtr.Write(rec); err != nil {
		wtr.Close()
		return errors.Wrap(err, "unable to write record batch")
	}
	return errors.Wrap(wtr.Close(), "unable to close arrow stream")
}
