package sweep

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/simsweep/internal/faults"
)

// Column names of the range table.
const (
	ColID           = "ID"
	ColAttribute    = "Attributes"
	ColStart        = "Start Value"
	ColEnd          = "End Value"
	ColStep         = "Steplength"
	ColReplications = "Number of Simulations"
)

// RequiredColumns lists the header the range table must carry.
var RequiredColumns = []string{ColID, ColAttribute, ColStart, ColEnd, ColStep, ColReplications}

// LoadResult is the outcome of reading a range table.
type LoadResult struct {
	Params *ParameterSet
	// Skipped counts data rows dropped for a missing or unparseable field.
	Skipped int
}

// LoadRangeSpecFile reads a range table from disk. A missing file is a
// configuration fault.
func LoadRangeSpecFile(path string) (LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, faults.New(faults.KindConfiguration, "open range table", path, err)
	}
	defer f.Close()

	res, err := LoadRangeSpec(f)
	if err != nil {
		var fe *faults.Error
		if errors.As(err, &fe) && fe.Subject == "" {
			fe.Subject = path
		}
		return LoadResult{}, err
	}
	return res, nil
}

// LoadRangeSpec parses a CSV range table. Columns may appear in any order
// and extra columns are ignored. Rows with an empty or non-numeric numeric
// field, or an empty id or attribute, are skipped.
func LoadRangeSpec(r io.Reader) (LoadResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return LoadResult{}, faults.Newf(faults.KindConfiguration, "read range table", "", "empty range table")
		}
		return LoadResult{}, faults.New(faults.KindConfiguration, "read range table", "", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return LoadResult{}, faults.Newf(faults.KindConfiguration, "read range table", "",
			"missing required columns: %s", strings.Join(missing, ", "))
	}

	res := LoadResult{Params: NewParameterSet()}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return LoadResult{}, faults.New(faults.KindConfiguration, "read range table", "",
				fmt.Errorf("line %d: %w", line, err))
		}
		d, ok := parseRow(rec, cols)
		if !ok {
			res.Skipped++
			continue
		}
		res.Params.Put(d)
	}
	return res, nil
}

func parseRow(rec []string, cols map[string]int) (RangeDescriptor, bool) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	d := RangeDescriptor{
		EntityID:  normaliseID(field(ColID)),
		Attribute: field(ColAttribute),
	}
	if d.EntityID == "" || d.Attribute == "" {
		return RangeDescriptor{}, false
	}

	var ok bool
	if d.Start, ok = parseNumber(field(ColStart)); !ok {
		return RangeDescriptor{}, false
	}
	if d.End, ok = parseNumber(field(ColEnd)); !ok {
		return RangeDescriptor{}, false
	}
	if d.Step, ok = parseNumber(field(ColStep)); !ok {
		return RangeDescriptor{}, false
	}
	n, ok := parseNumber(field(ColReplications))
	if !ok {
		return RangeDescriptor{}, false
	}
	d.Replications = int(n)
	if d.Replications < 1 {
		d.Replications = 1
	}
	return d, true
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// normaliseID turns an integral id written as a float ("1.0") into its
// integer form so it matches the entity's id attribute.
func normaliseID(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != math.Trunc(v) || math.IsInf(v, 0) {
		return s
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
