// Package filter selects simulator result documents by a structural
// predicate and copies the matches, unchanged, into a target directory.
package filter

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
	"github.com/banshee-data/simsweep/internal/scenario"
)

// DefaultSentinel is the vehicle id whose collisions are kept.
const DefaultSentinel = "v_0"

// Predicate decides whether a parsed result document is kept.
type Predicate func(doc *etree.Document) bool

// VictimPredicate keeps collision documents with at least one top-level
// collision record whose victim is sentinel.
func VictimPredicate(sentinel string) Predicate {
	return func(doc *etree.Document) bool {
		root := doc.Root()
		if root == nil {
			return false
		}
		for _, c := range root.SelectElements("collision") {
			if c.SelectAttrValue("victim", "") == sentinel {
				return true
			}
		}
		return false
	}
}

// Result summarizes one filter pass.
type Result struct {
	Scanned int
	Matched []string
	Skipped []string
}

// Filter copies every *.xml file in source that satisfies pred into target,
// byte for byte. Files are visited in name order. A file that cannot be
// read, is malformed (see scenario.ParseDocument) or cannot be copied is
// recorded and skipped. Running it twice over the same
// source yields the same target file set.
func Filter(ctx context.Context, fsys fsutil.FileSystem, source, target string, pred Predicate, log logrus.FieldLogger, fc *faults.Collector) (Result, error) {
	var res Result
	entries, err := fsys.ReadDir(source)
	if err != nil {
		return res, faults.New(faults.KindConfiguration, "scan results", source, err)
	}
	if err := fsutil.EnsureDirs(fsys, target); err != nil {
		return res, faults.New(faults.KindWrite, "create filter target", target, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		src := filepath.Join(source, name)

		data, err := fsys.ReadFile(src)
		if err != nil {
			fc.Record(faults.KindParse, "read result", src, err)
			res.Skipped = append(res.Skipped, name)
			continue
		}
		doc, err := scenario.ParseDocument(data)
		if err != nil {
			fc.Record(faults.KindParse, "parse result", src, err)
			res.Skipped = append(res.Skipped, name)
			continue
		}
		if !pred(doc) {
			continue
		}

		dst := filepath.Join(target, name)
		if err := fsys.WriteFile(dst, data, 0644); err != nil {
			fc.Record(faults.KindWrite, "copy match", dst, err)
			res.Skipped = append(res.Skipped, name)
			continue
		}
		res.Matched = append(res.Matched, name)
	}

	log.WithFields(logrus.Fields{
		"scanned": res.Scanned,
		"matched": len(res.Matched),
		"skipped": len(res.Skipped),
	}).Info("filtered results")
	return res, nil
}
