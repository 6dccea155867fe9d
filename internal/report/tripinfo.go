package report

import (
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
)

// TripinfoFile is the compiled trip-info table written into the Tripinfo
// directory.
const TripinfoFile = "Compiled.csv"

// TripinfoRow is the sentinel vehicle's trip record from one run.
type TripinfoRow struct {
	File   string
	Params []string
	Record map[string]string
}

// Tripinfo is a compiled trip-info table. Columns lists the record
// attributes in first-seen order.
type Tripinfo struct {
	Attributes []string
	Columns    []string
	Rows       []TripinfoRow
}

// CompileTripinfo extracts the record whose id is sentinel from every
// trip-info document in dir and writes Compiled.csv. Documents without such
// a record are left out.
func CompileTripinfo(fsys fsutil.FileSystem, dir, sentinel string, attrs []string, log logrus.FieldLogger, fc *faults.Collector) (*Tripinfo, error) {
	names, err := xmlFiles(fsys, dir)
	if err != nil {
		return nil, faults.New(faults.KindParse, "scan tripinfo", dir, err)
	}

	ti := &Tripinfo{Attributes: attrs}
	seen := make(map[string]bool)
	for _, name := range names {
		path := filepath.Join(dir, name)
		doc, err := parseFile(fsys, path)
		if err != nil {
			fc.Record(faults.KindParse, "parse tripinfo", path, err)
			continue
		}

		for _, el := range doc.Root().ChildElements() {
			if el.SelectAttrValue("id", "") != sentinel {
				continue
			}
			rec := make(map[string]string, len(el.Attr))
			for _, a := range el.Attr {
				rec[a.Key] = a.Value
				if !seen[a.Key] {
					seen[a.Key] = true
					ti.Columns = append(ti.Columns, a.Key)
				}
			}
			ti.Rows = append(ti.Rows, TripinfoRow{File: name, Params: paramColumns(name, attrs), Record: rec})
			break
		}
	}

	header := append([]string{"File", "routeID"}, attrs...)
	rows := [][]string{append(header, ti.Columns...)}
	for _, r := range ti.Rows {
		row := append([]string{r.File}, r.Params...)
		for _, c := range ti.Columns {
			v, ok := r.Record[c]
			if !ok {
				v = Missing
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	if err := writeCSV(fsys, filepath.Join(dir, TripinfoFile), rows); err != nil {
		return ti, err
	}

	log.WithFields(logrus.Fields{"rows": len(ti.Rows), "sentinel": sentinel}).Info("compiled tripinfo")
	return ti, nil
}
