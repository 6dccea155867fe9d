package scenario

import (
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
	"github.com/banshee-data/simsweep/internal/security"
	"github.com/banshee-data/simsweep/internal/sweep"
)

const (
	// DefaultEntityTag is the element that carries sweepable attributes.
	DefaultEntityTag = "vType"
	// DefaultRouteExt is the extension of derived route documents.
	DefaultRouteExt = ".rou.xml"

	routePrefix = "route_"
)

// Applied lists what Materialize changed.
type Applied struct {
	// Matched is false when no entity carried the requested id.
	Matched bool
	// Set lists the attributes overwritten, in binding order.
	Set []string
	// Skipped lists bound attributes the entity does not declare.
	Skipped []string
}

// Materialize returns a copy of base in which the top-level entity whose id
// equals c.EntityID has each of its existing attributes named in c
// overwritten. Attributes the entity does not declare are never added, other
// entities are untouched, and base itself is not modified.
func Materialize(base *etree.Document, entityTag string, c sweep.Combination) (*etree.Document, Applied) {
	doc := base.Copy()
	var applied Applied

	root := doc.Root()
	if root == nil {
		return doc, applied
	}
	for _, el := range root.SelectElements(entityTag) {
		if el.SelectAttrValue("id", "") != c.EntityID {
			continue
		}
		applied.Matched = true
		for _, b := range c.Bindings {
			if el.SelectAttr(b.Attribute) == nil {
				applied.Skipped = append(applied.Skipped, b.Attribute)
				continue
			}
			el.CreateAttr(b.Attribute, sweep.FormatValue(b.Value))
			applied.Set = append(applied.Set, b.Attribute)
		}
	}
	return doc, applied
}

// DerivedName returns route_<entity>_<attr1><v1>_<attr2><v2>...<ext>.
func DerivedName(c sweep.Combination, ext string) string {
	if ext == "" {
		ext = DefaultRouteExt
	}
	return routePrefix + c.EntityID + "_" + c.Key() + ext
}

// BaseName strips the last extension from a derived document's filename,
// so route_1_tau0.8.rou.xml becomes route_1_tau0.8.rou.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Derived is one derived route document on disk.
type Derived struct {
	Path        string
	Combination sweep.Combination
}

// Generator writes one derived route document per combination.
type Generator struct {
	FS        fsutil.FileSystem
	Base      *etree.Document
	EntityTag string
	Ext       string
	Dir       string
	Log       logrus.FieldLogger
	Faults    *faults.Collector
}

// Generate materializes and writes every combination of every entity in
// params. Range faults skip the affected attribute, write faults skip the
// combination; both are recorded and generation continues.
func (g *Generator) Generate(params *sweep.ParameterSet) []Derived {
	tag := g.EntityTag
	if tag == "" {
		tag = DefaultEntityTag
	}

	var out []Derived
	for _, e := range params.Entities() {
		log := g.Log.WithField("entity", e.ID)
		combos, err := sweep.EntityCombinations(e, func(err error) {
			g.Faults.Record(faults.KindRange, "expand", e.ID, err)
		})
		if err != nil {
			g.Faults.Record(faults.KindRange, "combine", e.ID, err)
			continue
		}
		log.WithFields(logrus.Fields{
			"combinations": len(combos),
			"replications": e.Replications(),
		}).Info("generating route files")

		for _, c := range combos {
			doc, applied := Materialize(g.Base, tag, c)
			name := DerivedName(c, g.Ext)
			if !applied.Matched {
				log.WithField("file", name).Warn("no entity with this id in base document, writing unchanged copy")
			} else if len(applied.Skipped) > 0 {
				log.WithFields(logrus.Fields{"file": name, "skipped": applied.Skipped}).
					Debug("entity does not declare some swept attributes")
			}

			path := filepath.Join(g.Dir, name)
			if err := security.WithinDir(path, g.Dir); err != nil {
				g.Faults.Record(faults.KindWrite, "write route", path, err)
				continue
			}
			if err := WriteDocument(g.FS, doc, path); err != nil {
				g.Faults.Record(faults.KindWrite, "write route", path, err)
				continue
			}
			log.WithField("file", name).Debug("generated route file")
			out = append(out, Derived{Path: path, Combination: c})
		}
	}
	return out
}
