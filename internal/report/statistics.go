package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
	"github.com/banshee-data/simsweep/internal/scenario"
)

const (
	StatisticsFile = "extracted_data.csv"
	SummaryFile    = "collision_summary.csv"
	ErrorLogFile   = "error_log.txt"
)

// StatisticsRow is the safety summary of one run.
type StatisticsRow struct {
	File             string
	Params           []string
	Teleports        string
	EmergencyBraking string
	Collisions       string
}

// CollisionCount returns the parsed collision count.
func (r StatisticsRow) CollisionCount() (float64, bool) {
	v, err := strconv.ParseFloat(r.Collisions, 64)
	return v, err == nil
}

// CollisionSummary aggregates collision counts over every run sharing one
// attribute value.
type CollisionSummary struct {
	Attribute string
	Value     string
	Runs      int
	Mean      float64
	StdDev    float64
}

// Statistics is a compiled statistics table.
type Statistics struct {
	Attributes []string
	Rows       []StatisticsRow
	Summary    []CollisionSummary
	Errors     []string
}

// CompileStatistics reads every statistics document in dir and writes
// extracted_data.csv, collision_summary.csv and, when any document failed,
// error_log.txt alongside them. attrs selects the parameter columns.
func CompileStatistics(fsys fsutil.FileSystem, dir string, attrs []string, log logrus.FieldLogger, fc *faults.Collector) (*Statistics, error) {
	names, err := xmlFiles(fsys, dir)
	if err != nil {
		return nil, faults.New(faults.KindParse, "scan statistics", dir, err)
	}

	st := &Statistics{Attributes: attrs}
	for _, name := range names {
		path := filepath.Join(dir, name)
		doc, err := parseFile(fsys, path)
		if err != nil {
			fc.Record(faults.KindParse, "parse statistics", path, err)
			st.Errors = append(st.Errors, fmt.Sprintf("Error parsing %s: %v", name, err))
			continue
		}
		root := doc.Root()
		safety := root.SelectElement("safety")
		st.Rows = append(st.Rows, StatisticsRow{
			File:             name,
			Params:           paramColumns(name, attrs),
			Teleports:        attrOr(root.SelectElement("teleports"), "total"),
			EmergencyBraking: attrOr(safety, "emergencyBraking"),
			Collisions:       attrOr(safety, "collisions"),
		})
	}
	st.Summary = summarize(st.Rows, attrs)

	header := append([]string{"File", "routeID"}, attrs...)
	header = append(header, "totalTeleports", "emergencyBraking", "collisions")
	rows := [][]string{header}
	for _, r := range st.Rows {
		row := append([]string{r.File}, r.Params...)
		rows = append(rows, append(row, r.Teleports, r.EmergencyBraking, r.Collisions))
	}
	if err := writeCSV(fsys, filepath.Join(dir, StatisticsFile), rows); err != nil {
		return st, err
	}

	summary := [][]string{{"attribute", "value", "runs", "collisions_mean", "collisions_stddev"}}
	for _, s := range st.Summary {
		summary = append(summary, []string{
			s.Attribute, s.Value, strconv.Itoa(s.Runs),
			fmt.Sprintf("%.6f", s.Mean), fmt.Sprintf("%.6f", s.StdDev),
		})
	}
	if err := writeCSV(fsys, filepath.Join(dir, SummaryFile), summary); err != nil {
		return st, err
	}

	if len(st.Errors) > 0 {
		errPath := filepath.Join(dir, ErrorLogFile)
		if err := fsys.WriteFile(errPath, []byte(strings.Join(st.Errors, "\n")+"\n"), 0644); err != nil {
			return st, faults.New(faults.KindWrite, "write error log", errPath, err)
		}
	}

	log.WithFields(logrus.Fields{"rows": len(st.Rows), "errors": len(st.Errors)}).Info("compiled statistics")
	return st, nil
}

// summarize groups rows by each attribute's value. Groups are ordered by
// attribute declaration order then numeric value. A single run has zero
// deviation.
func summarize(rows []StatisticsRow, attrs []string) []CollisionSummary {
	var out []CollisionSummary
	for i, attr := range attrs {
		groups := make(map[string][]float64)
		for _, r := range rows {
			n, ok := r.CollisionCount()
			v := r.Params[i+1]
			if !ok || v == Missing {
				continue
			}
			groups[v] = append(groups[v], n)
		}

		values := make([]string, 0, len(groups))
		for v := range groups {
			values = append(values, v)
		}
		sort.Slice(values, func(a, b int) bool {
			fa, _ := strconv.ParseFloat(values[a], 64)
			fb, _ := strconv.ParseFloat(values[b], 64)
			return fa < fb
		})

		for _, v := range values {
			xs := groups[v]
			s := CollisionSummary{Attribute: attr, Value: v, Runs: len(xs)}
			if len(xs) == 1 {
				s.Mean = xs[0]
			} else {
				s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
			}
			out = append(out, s)
		}
	}
	return out
}

// CollisionsByRoute maps each derived route name to its collision count.
// Rows without a numeric count are left out.
func (s *Statistics) CollisionsByRoute() ([]string, []float64) {
	var (
		names  []string
		counts []float64
	)
	for _, r := range s.Rows {
		n, ok := r.CollisionCount()
		if !ok {
			continue
		}
		name := strings.TrimPrefix(scenario.BaseName(r.File), scenario.Statistic.Prefix()+"_")
		names = append(names, name)
		counts = append(counts, n)
	}
	return names, counts
}
