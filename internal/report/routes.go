package report

import (
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
	"github.com/banshee-data/simsweep/internal/sweep"
)

// RoutesFile is the compiled route parameter table written into the route
// directory.
const RoutesFile = "route_parameters.csv"

// CompileRoutes records, for every derived route document in dir, the
// value each swept attribute has on each swept entity. Columns are named
// <attribute>_<entity>, attribute-major.
func CompileRoutes(fsys fsutil.FileSystem, dir, entityTag string, params *sweep.ParameterSet, log logrus.FieldLogger, fc *faults.Collector) (int, error) {
	names, err := xmlFiles(fsys, dir)
	if err != nil {
		return 0, faults.New(faults.KindParse, "scan routes", dir, err)
	}

	entities := params.Entities()
	attrs := params.Attributes()
	header := []string{"File name"}
	for _, a := range attrs {
		for _, e := range entities {
			header = append(header, a+"_"+e.ID)
		}
	}
	rows := [][]string{header}

	for _, name := range names {
		path := filepath.Join(dir, name)
		doc, err := parseFile(fsys, path)
		if err != nil {
			fc.Record(faults.KindParse, "parse route", path, err)
			continue
		}
		byID := make(map[string]map[string]string)
		for _, el := range doc.Root().SelectElements(entityTag) {
			id := el.SelectAttrValue("id", "")
			if _, dup := byID[id]; dup {
				continue
			}
			vals := make(map[string]string, len(el.Attr))
			for _, a := range el.Attr {
				vals[a.Key] = a.Value
			}
			byID[id] = vals
		}

		row := []string{name}
		for _, a := range attrs {
			for _, e := range entities {
				v, ok := byID[e.ID][a]
				if !ok {
					v = Missing
				}
				row = append(row, v)
			}
		}
		rows = append(rows, row)
	}

	if err := writeCSV(fsys, filepath.Join(dir, RoutesFile), rows); err != nil {
		return len(rows) - 1, err
	}
	log.WithField("rows", len(rows)-1).Info("compiled route parameters")
	return len(rows) - 1, nil
}
