// Package report compiles the simulator's result documents into CSV tables
// and an HTML chart, attaching the swept parameters parsed from each
// filename.
package report

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
	"github.com/banshee-data/simsweep/internal/scenario"
)

// Missing fills cells whose value could not be found.
const Missing = "N/A"

// xmlFiles returns the *.xml filenames in dir, sorted.
func xmlFiles(fsys fsutil.FileSystem, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".xml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// parseFile reads and parses one result document.
func parseFile(fsys fsutil.FileSystem, path string) (*etree.Document, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, faults.New(faults.KindParse, "read result", path, err)
	}
	doc, err := scenario.ParseDocument(data)
	if err != nil {
		return nil, faults.New(faults.KindParse, "parse result", path, err)
	}
	return doc, nil
}

// paramColumns returns the route id followed by each attribute's value as
// encoded in name.
func paramColumns(name string, attrs []string) []string {
	cols := make([]string, 0, len(attrs)+1)
	p, ok := scenario.ParseDerivedName(name)
	if !ok {
		for range len(attrs) + 1 {
			cols = append(cols, Missing)
		}
		return cols
	}
	cols = append(cols, p.EntityID)
	for _, a := range attrs {
		v := p.Lookup(a)
		if v == "" {
			v = Missing
		}
		cols = append(cols, v)
	}
	return cols
}

// writeCSV encodes rows and writes them to path in one step.
func writeCSV(fsys fsutil.FileSystem, path string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return faults.New(faults.KindWrite, "encode csv", path, err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return faults.New(faults.KindWrite, "write csv", path, err)
	}
	return nil
}

func attrOr(el *etree.Element, key string) string {
	if el == nil {
		return Missing
	}
	return el.SelectAttrValue(key, Missing)
}
