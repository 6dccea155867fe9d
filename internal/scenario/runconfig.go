package scenario

import (
	"path/filepath"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
)

// Category is one of the simulator's output kinds.
type Category string

const (
	Collision  Category = "collision-output"
	Statistic  Category = "statistic-output"
	Tripinfo   Category = "tripinfo-output"
	Lanechange Category = "lanechange-output"
)

// Categories lists the output categories in the order they are written.
var Categories = []Category{Collision, Statistic, Tripinfo, Lanechange}

// Prefix returns the filename prefix of result documents in the category.
func (c Category) Prefix() string {
	switch c {
	case Collision:
		return "collisions"
	case Statistic:
		return "statistics"
	case Tripinfo:
		return "tripinfo"
	case Lanechange:
		return "lanechange"
	}
	return string(c)
}

// Layout maps each output category to its directory.
type Layout map[Category]string

// OutputPath returns <dir>/<prefix>_<base>.xml for the category.
func (l Layout) OutputPath(c Category, base string) string {
	return filepath.Join(l[c], c.Prefix()+"_"+base+".xml")
}

// RunConfig is one simulator invocation descriptor on disk.
type RunConfig struct {
	Path      string
	RouteFile string
	Outputs   map[Category]string
}

// OutputPaths returns the four output paths in category order.
func (r RunConfig) OutputPaths() []string {
	out := make([]string, 0, len(Categories))
	for _, c := range Categories {
		if p, ok := r.Outputs[c]; ok {
			out = append(out, p)
		}
	}
	return out
}

// BuildRunConfig returns a copy of template whose input section points at
// routePath (and netFile, when set) and whose output section carries one
// element per category. Missing sections and elements are created; existing
// ones are overwritten in place, never duplicated.
func BuildRunConfig(template *etree.Document, routePath, netFile string, layout Layout) (*etree.Document, map[Category]string) {
	doc := template.Copy()
	root := doc.Root()
	if root == nil {
		root = doc.CreateElement("configuration")
	}

	input := child(root, "input")
	setValue(child(input, "route-files"), routePath)
	if netFile != "" {
		setValue(child(input, "net-file"), netFile)
	}

	base := BaseName(routePath)
	output := child(root, "output")
	outputs := make(map[Category]string, len(Categories))
	for _, c := range Categories {
		p := layout.OutputPath(c, base)
		setValue(child(output, string(c)), p)
		outputs[c] = p
	}
	return doc, outputs
}

// RunConfigName returns temp_config_<base>.sumocfg for a derived document.
func RunConfigName(routePath string) string {
	return "temp_config_" + BaseName(routePath) + ".sumocfg"
}

func child(parent *etree.Element, tag string) *etree.Element {
	if el := parent.SelectElement(tag); el != nil {
		return el
	}
	return parent.CreateElement(tag)
}

func setValue(el *etree.Element, v string) {
	el.CreateAttr("value", v)
}

// ConfigWriter derives and writes one run config per derived document.
type ConfigWriter struct {
	FS       fsutil.FileSystem
	Template *etree.Document
	NetFile  string
	Layout   Layout
	Dir      string
	Log      logrus.FieldLogger
	Faults   *faults.Collector
}

// Write builds the run config for every derived document. A config that
// cannot be written is recorded and its combination skipped.
func (w *ConfigWriter) Write(derived []Derived) []RunConfig {
	out := make([]RunConfig, 0, len(derived))
	for _, d := range derived {
		doc, outputs := BuildRunConfig(w.Template, d.Path, w.NetFile, w.Layout)
		path := filepath.Join(w.Dir, RunConfigName(d.Path))
		if err := WriteDocument(w.FS, doc, path); err != nil {
			w.Faults.Record(faults.KindWrite, "write run config", path, err)
			continue
		}
		out = append(out, RunConfig{Path: path, RouteFile: d.Path, Outputs: outputs})
	}
	w.Log.WithField("configs", len(out)).Info("run configs written")
	return out
}
