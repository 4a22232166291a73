package engine

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"covidboard/internal/models"
)

// Column names the loader requires. Matching is case-insensitive.
const (
	ColDate       = "DATE"
	ColCountry    = "COUNTRY"
	ColNewCases   = "NEW_CASES"
	ColNewDeaths  = "NEW_DEATHS"
	ColVaccinated = "VACCINATED"
)

var requiredColumns = []string{ColDate, ColCountry, ColNewCases, ColNewDeaths, ColVaccinated}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Below this many bytes per worker the file is not worth splitting.
const minChunkBytes = 64 << 10

type columnIndex struct {
	date, country, cases, deaths, vaccinated int
	maxIdx                                   int
}

// chunkColumns is what one worker parses: local columns plus a local
// country dictionary that is remapped onto the global one afterwards.
type chunkColumns struct {
	dates  []models.Date
	cases  []int64
	deaths []int64
	vax    []int64
	ids    []int32
	dict   *orderedmap.OrderedMap[string, int32]
}

// LoadColumnar reads a CSV dataset from disk.
func LoadColumnar(path string) (*ColumnStore, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read dataset")
	}
	store, err := ParseColumnar(content)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load %s", path)
	}
	return store, nil
}

// ParseColumnar parses CSV content into a ColumnStore. The body is split on
// line boundaries and parsed in parallel; row order is preserved. Quoted
// fields may contain commas but not newlines.
func ParseColumnar(content []byte) (*ColumnStore, error) {
	checksum := xxh3.Hash(content)
	content = bytes.TrimPrefix(content, utf8BOM)

	// A. Header
	header, body := content, []byte(nil)
	if idx := bytes.IndexByte(content, '\n'); idx != -1 {
		header, body = content[:idx], content[idx+1:]
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	// B. Parallel parsing, one chunk per worker
	bounds := splitChunks(body, runtime.NumCPU())
	parts := make([]*chunkColumns, len(bounds))

	var g errgroup.Group
	for i, b := range bounds {
		// header is line 1
		firstLine := 2 + bytes.Count(body[:b[0]], []byte{'\n'})
		g.Go(func() error {
			part, err := parseChunk(body[b[0]:b[1]], firstLine, cols)
			if err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// C. Merge, remapping local country IDs onto the global dictionary
	total := 0
	for _, p := range parts {
		total += len(p.dates)
	}
	store := &ColumnStore{
		Dates:      make([]models.Date, 0, total),
		NewCases:   make([]int64, 0, total),
		NewDeaths:  make([]int64, 0, total),
		Vaccinated: make([]int64, 0, total),
		CountryIDs: make([]int32, 0, total),
		Checksum:   checksum,
	}
	global := orderedmap.NewOrderedMap[string, int32]()
	for _, p := range parts {
		remap := make([]int32, p.dict.Len())
		for el := p.dict.Front(); el != nil; el = el.Next() {
			gid, ok := global.Get(el.Key)
			if !ok {
				gid = int32(global.Len())
				global.Set(el.Key, gid)
			}
			remap[el.Value] = gid
		}
		for _, id := range p.ids {
			store.CountryIDs = append(store.CountryIDs, remap[id])
		}
		store.Dates = append(store.Dates, p.dates...)
		store.NewCases = append(store.NewCases, p.cases...)
		store.NewDeaths = append(store.NewDeaths, p.deaths...)
		store.Vaccinated = append(store.Vaccinated, p.vax...)
	}
	store.CountryDict = make([]string, 0, global.Len())
	for el := global.Front(); el != nil; el = el.Next() {
		store.CountryDict = append(store.CountryDict, el.Key)
	}

	return store, nil
}

func resolveColumns(header []byte) (columnIndex, error) {
	r := csv.NewReader(bytes.NewReader(header))
	names, err := r.Read()
	if err == io.EOF {
		return columnIndex{}, &MissingColumnError{Columns: requiredColumns}
	}
	if err != nil {
		return columnIndex{}, errors.Wrap(err, "unable to parse header")
	}

	found := make(map[string]int, len(names))
	for i, name := range names {
		key := strings.ToUpper(strings.TrimSpace(name))
		if _, dup := found[key]; !dup {
			found[key] = i
		}
	}

	var missing []string
	lookup := func(col string) int {
		idx, ok := found[col]
		if !ok {
			missing = append(missing, col)
			return -1
		}
		return idx
	}
	cols := columnIndex{
		date:       lookup(ColDate),
		country:    lookup(ColCountry),
		cases:      lookup(ColNewCases),
		deaths:     lookup(ColNewDeaths),
		vaccinated: lookup(ColVaccinated),
	}
	if len(missing) > 0 {
		return columnIndex{}, &MissingColumnError{Columns: missing}
	}
	for _, idx := range []int{cols.date, cols.country, cols.cases, cols.deaths, cols.vaccinated} {
		if idx > cols.maxIdx {
			cols.maxIdx = idx
		}
	}
	return cols, nil
}

// splitChunks cuts body into at most n [start, end) ranges that each end on
// a line boundary.
func splitChunks(body []byte, n int) [][2]int {
	if limit := len(body)/minChunkBytes + 1; n > limit {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	size := len(body) / n

	bounds := make([][2]int, 0, n)
	start := 0
	for i := 0; i < n && start < len(body); i++ {
		end := len(body)
		if i < n-1 {
			end = (i + 1) * size
			if end < start {
				end = start
			}
			// Align to newlines
			if j := bytes.IndexByte(body[end:], '\n'); j != -1 {
				end += j + 1
			} else {
				end = len(body)
			}
		}
		bounds = append(bounds, [2]int{start, end})
		start = end
	}
	return bounds
}

func parseChunk(chunk []byte, firstLine int, cols columnIndex) (*chunkColumns, error) {
	r := csv.NewReader(bytes.NewReader(chunk))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	out := &chunkColumns{dict: orderedmap.NewOrderedMap[string, int32]()}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "chunk starting at line %d", firstLine)
		}
		line, _ := r.FieldPos(0)
		line += firstLine - 1

		if len(rec) <= cols.maxIdx {
			return nil, &ParseError{Line: line, Column: "*", Value: strings.Join(rec, ","), Err: errors.New("too few fields")}
		}

		date, err := models.ParseDate(rec[cols.date])
		if err != nil {
			return nil, &ParseError{Line: line, Column: ColDate, Value: rec[cols.date], Err: err}
		}
		country := rec[cols.country]
		if country == "" {
			return nil, &ParseError{Line: line, Column: ColCountry, Value: country, Err: errors.New("empty country")}
		}
		cases, err := parseCount(rec[cols.cases])
		if err != nil {
			return nil, &ParseError{Line: line, Column: ColNewCases, Value: rec[cols.cases], Err: err}
		}
		deaths, err := parseCount(rec[cols.deaths])
		if err != nil {
			return nil, &ParseError{Line: line, Column: ColNewDeaths, Value: rec[cols.deaths], Err: err}
		}
		vax, err := parseCount(rec[cols.vaccinated])
		if err != nil {
			return nil, &ParseError{Line: line, Column: ColVaccinated, Value: rec[cols.vaccinated], Err: err}
		}

		id, ok := out.dict.Get(country)
		if !ok {
			id = int32(out.dict.Len())
			out.dict.Set(country, id)
		}
		out.ids = append(out.ids, id)
		out.dates = append(out.dates, date)
		out.cases = append(out.cases, cases)
		out.deaths = append(out.deaths, deaths)
		out.vax = append(out.vax, vax)
	}
	return out, nil
}

// parseCount parses a non-negative integer, also accepting an integral
// decimal form such as "12.0".
func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i != -1 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("not an integer")
	}
	if n < 0 {
		return 0, errors.New("negative count")
	}
	return n, nil
}
