package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
	"github.com/banshee-data/simsweep/internal/sweep"
	"github.com/banshee-data/simsweep/internal/testutil"
)

const baseRoutes = `<?xml version="1.0" encoding="UTF-8"?>
<routes>
    <vType id="1" tau="1.0" lcSigma="0.0" accel="2.6"/>
    <vType id="2" tau="1.0" minGapLat="0.6"/>
    <vehicle id="v_0" type="1" depart="0"/>
</routes>
`

const runTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<configuration>
    <input>
        <net-file value="old.net.xml"/>
        <route-files value="old.rou.xml"/>
    </input>
    <output>
        <collision-output value="old_collisions.xml"/>
    </output>
    <time>
        <end value="3600"/>
    </time>
</configuration>
`

func parse(t *testing.T, s string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))
	return doc
}

func combo(entity string, kv ...interface{}) sweep.Combination {
	c := sweep.Combination{EntityID: entity}
	for i := 0; i+1 < len(kv); i += 2 {
		c.Bindings = append(c.Bindings, sweep.Binding{Attribute: kv[i].(string), Value: kv[i+1].(float64)})
	}
	return c
}

func attrs(el *etree.Element) map[string]string {
	m := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		m[a.Key] = a.Value
	}
	return m
}

func TestMaterialize_OverwritesOnlyMatchingEntity(t *testing.T) {
	base := parse(t, baseRoutes)
	before, err := base.WriteToString()
	require.NoError(t, err)

	doc, applied := Materialize(base, DefaultEntityTag, combo("1", "tau", 0.8, "minGapLat", 0.2, "lcSigma", 0.5))

	assert.True(t, applied.Matched)
	assert.Equal(t, []string{"tau", "lcSigma"}, applied.Set)
	assert.Equal(t, []string{"minGapLat"}, applied.Skipped)

	types := doc.Root().SelectElements("vType")
	require.Len(t, types, 2)
	assert.Equal(t, map[string]string{"id": "1", "tau": "0.8", "lcSigma": "0.5", "accel": "2.6"}, attrs(types[0]))
	assert.Equal(t, map[string]string{"id": "2", "tau": "1.0", "minGapLat": "0.6"}, attrs(types[1]))

	after, err := base.WriteToString()
	require.NoError(t, err)
	assert.Equal(t, before, after, "base document must not change")
}

func TestMaterialize_NoMatchIsUnchangedCopy(t *testing.T) {
	base := parse(t, baseRoutes)
	doc, applied := Materialize(base, DefaultEntityTag, combo("9", "tau", 0.8))
	assert.False(t, applied.Matched)

	want, _ := base.WriteToString()
	got, _ := doc.WriteToString()
	assert.Equal(t, want, got)
}

func TestMaterialize_IgnoresNestedAndOtherTags(t *testing.T) {
	base := parse(t, `<routes><vTypeDistribution id="d"><vType id="1" tau="1"/></vTypeDistribution><vehicle id="1" tau="5"/></routes>`)
	doc, applied := Materialize(base, DefaultEntityTag, combo("1", "tau", 0.8))
	assert.False(t, applied.Matched)

	nested := doc.FindElement("//vTypeDistribution/vType")
	require.NotNil(t, nested)
	assert.Equal(t, "1", nested.SelectAttrValue("tau", ""))
	assert.Equal(t, "5", doc.FindElement("//vehicle").SelectAttrValue("tau", ""))
}

func TestDerivedName(t *testing.T) {
	testCases := []struct {
		name string
		c    sweep.Combination
		ext  string
		want string
	}{
		{"single", combo("1", "tau", 0.8), "", "route_1_tau0.8.rou.xml"},
		{"integral_value", combo("1", "tau", 1.0), "", "route_1_tau1.0.rou.xml"},
		{"multi", combo("2", "tau", 1.2, "lcSigma", 0.25), ".xml", "route_2_tau1.2_lcSigma0.25.xml"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DerivedName(tc.c, tc.ext))
		})
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "route_1_tau0.8.rou", BaseName("/out/Route_files/route_1_tau0.8.rou.xml"))
	assert.Equal(t, "plain", BaseName("plain"))
}

func TestParseDerivedName(t *testing.T) {
	p, ok := ParseDerivedName("collisions_route_1_tau0.8_lcSigma-0.25_minGapLat1.0.rou.xml")
	require.True(t, ok)
	assert.Equal(t, "1", p.EntityID)
	require.Len(t, p.Params, 3)
	assert.Equal(t, Param{Attribute: "tau", Value: 0.8, Text: "0.8"}, p.Params[0])
	assert.Equal(t, -0.25, p.Params[1].Value)
	assert.Equal(t, "1.0", p.Lookup("minGapLat"))
	assert.Equal(t, "", p.Lookup("accel"))

	_, ok = ParseDerivedName("extracted_data.xml")
	assert.False(t, ok)
}

func TestParseDerivedName_RoundTrip(t *testing.T) {
	c := combo("4", "actionStepLength", 0.5, "tau", 1.0)
	p, ok := ParseDerivedName(DerivedName(c, ""))
	require.True(t, ok)
	assert.Equal(t, c.EntityID, p.EntityID)
	for i, b := range c.Bindings {
		assert.Equal(t, b.Attribute, p.Params[i].Attribute)
		assert.Equal(t, b.Value, p.Params[i].Value)
	}
}

func TestBuildRunConfig(t *testing.T) {
	tpl := parse(t, runTemplate)
	layout := Layout{
		Collision:  "/out/Collisions",
		Statistic:  "/out/Statistics",
		Tripinfo:   "/out/Tripinfo",
		Lanechange: "/out/lanechange",
	}

	doc, outputs := BuildRunConfig(tpl, "/out/Route_files/route_1_tau0.8.rou.xml", "/in/Town04.net.xml", layout)
	root := doc.Root()

	assert.Len(t, root.FindElements("input/route-files"), 1)
	assert.Equal(t, "/out/Route_files/route_1_tau0.8.rou.xml", root.FindElement("input/route-files").SelectAttrValue("value", ""))
	assert.Equal(t, "/in/Town04.net.xml", root.FindElement("input/net-file").SelectAttrValue("value", ""))

	want := map[Category]string{
		Collision:  filepath.Join("/out/Collisions", "collisions_route_1_tau0.8.rou.xml"),
		Statistic:  filepath.Join("/out/Statistics", "statistics_route_1_tau0.8.rou.xml"),
		Tripinfo:   filepath.Join("/out/Tripinfo", "tripinfo_route_1_tau0.8.rou.xml"),
		Lanechange: filepath.Join("/out/lanechange", "lanechange_route_1_tau0.8.rou.xml"),
	}
	assert.Equal(t, want, outputs)
	for c, p := range want {
		els := root.FindElements("output/" + string(c))
		require.Len(t, els, 1, "category %s must appear exactly once", c)
		assert.Equal(t, p, els[0].SelectAttrValue("value", ""))
	}

	assert.Equal(t, "3600", root.FindElement("time/end").SelectAttrValue("value", ""), "unrelated settings survive")
	assert.Equal(t, "old.rou.xml", tpl.Root().FindElement("input/route-files").SelectAttrValue("value", ""), "template must not change")
}

func TestBuildRunConfig_CreatesMissingSections(t *testing.T) {
	tpl := parse(t, `<configuration/>`)
	doc, outputs := BuildRunConfig(tpl, "r/route_1_tau1.0.rou.xml", "", Layout{})
	root := doc.Root()

	require.NotNil(t, root.FindElement("input/route-files"))
	assert.Nil(t, root.FindElement("input/net-file"), "net-file is only set when configured")
	assert.Len(t, root.SelectElement("output").ChildElements(), 4)
	assert.Len(t, outputs, 4)
}

func TestRunConfigName(t *testing.T) {
	assert.Equal(t, "temp_config_route_1_tau0.8.rou.sumocfg", RunConfigName("/x/route_1_tau0.8.rou.xml"))
}

func TestWriteDocument_AddsDeclaration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xml")
	doc := parse(t, `<routes><vType id="1"/></routes>`)

	require.NoError(t, WriteDocument(fsutil.OSFileSystem{}, doc, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Equal(t, 1, strings.Count(string(data), "<?xml"))

	// A document that already declares itself keeps a single declaration.
	require.NoError(t, WriteDocument(fsutil.OSFileSystem{}, parse(t, baseRoutes), path))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "<?xml"))
}

func TestWriteDocument_FailureIsWriteFault(t *testing.T) {
	err := WriteDocument(fsutil.OSFileSystem{}, parse(t, baseRoutes), filepath.Join(t.TempDir(), "missing", "x.xml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, faults.ErrWrite)
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.xml")
	bad := filepath.Join(dir, "bad.xml")
	require.NoError(t, os.WriteFile(good, []byte(baseRoutes), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("<routes><vType"), 0644))

	doc, err := LoadDocument(fsutil.OSFileSystem{}, good)
	require.NoError(t, err)
	assert.Equal(t, "routes", doc.Root().Tag)

	_, err = LoadDocument(fsutil.OSFileSystem{}, bad)
	assert.ErrorIs(t, err, faults.ErrConfiguration)

	_, err = LoadDocument(fsutil.OSFileSystem{}, filepath.Join(dir, "none.xml"))
	assert.ErrorIs(t, err, faults.ErrConfiguration)
}

func TestParseDocument(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"plain", `<routes/>`, nil},
		{"declaration and comments", "<?xml version=\"1.0\"?>\n<!-- a -->\n<routes/>\n<!-- b -->\n", nil},
		{"empty", "", ErrNoRoot},
		{"whitespace only", " \n\t", ErrNoRoot},
		{"second element", `<routes/><extra/>`, ErrTrailingContent},
		{"text after root", `<routes/>tail`, ErrTrailingContent},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tc.body))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "routes", doc.Root().Tag)
		})
	}

	_, err := ParseDocument([]byte(`<routes><vType`))
	assert.Error(t, err)
}

func TestGenerator_EndToEndNames(t *testing.T) {
	dir := t.TempDir()
	params := sweep.NewParameterSet()
	params.Put(sweep.RangeDescriptor{EntityID: "1", Attribute: "tau", Start: 0.8, End: 1.2, Step: 0.2, Replications: 1})

	logger, _ := test.NewNullLogger()
	g := &Generator{
		FS:     fsutil.OSFileSystem{},
		Base:   parse(t, baseRoutes),
		Dir:    dir,
		Log:    logger,
		Faults: faults.NewCollector(nil),
	}
	derived := g.Generate(params)

	require.Len(t, derived, 3)
	var names []string
	for _, d := range derived {
		names = append(names, filepath.Base(d.Path))
	}
	assert.Equal(t, []string{"route_1_tau0.8.rou.xml", "route_1_tau1.0.rou.xml", "route_1_tau1.2.rou.xml"}, names)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromFile(derived[1].Path))
	assert.Equal(t, "1.0", doc.FindElement("//vType[@id='1']").SelectAttrValue("tau", ""))
	assert.Equal(t, 0, g.Faults.Len())
}

type failingWrites struct {
	fsutil.OSFileSystem
	failing string
}

func (f failingWrites) WriteFile(name string, data []byte, perm os.FileMode) error {
	if strings.Contains(name, f.failing) {
		return errors.New("disk full")
	}
	return f.OSFileSystem.WriteFile(name, data, perm)
}

func TestGenerator_WriteFailureSkipsCombination(t *testing.T) {
	params := sweep.NewParameterSet()
	params.Put(sweep.RangeDescriptor{EntityID: "1", Attribute: "tau", Start: 0.8, End: 1.2, Step: 0.2, Replications: 1})
	params.Put(sweep.RangeDescriptor{EntityID: "2", Attribute: "tau", Start: 1, End: 2, Step: 0, Replications: 1})

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	g := &Generator{
		FS:     failingWrites{failing: "tau1.0"},
		Base:   parse(t, baseRoutes),
		Dir:    t.TempDir(),
		Log:    logger,
		Faults: faults.NewCollector(nil),
	}
	derived := g.Generate(params)

	assert.Len(t, derived, 2)
	assert.Equal(t, 1, g.Faults.Count(faults.KindWrite))
	assert.Equal(t, 1, g.Faults.Count(faults.KindRange))
	assert.NotEmpty(t, hook.AllEntries())
}

func TestGenerator_RejectsEscapingEntityID(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Route_files")
	require.NoError(t, os.MkdirAll(dir, 0755))
	params := sweep.NewParameterSet()
	params.Put(sweep.RangeDescriptor{EntityID: "x/../../..", Attribute: "tau", Start: 1, End: 1, Step: 1, Replications: 1})

	logger, _ := test.NewNullLogger()
	g := &Generator{
		FS:     fsutil.OSFileSystem{},
		Base:   parse(t, baseRoutes),
		Dir:    dir,
		Log:    logger,
		Faults: faults.NewCollector(nil),
	}
	assert.Empty(t, g.Generate(params))
	assert.Equal(t, 1, g.Faults.Count(faults.KindWrite))
	assert.Empty(t, testutil.ListNames(t, root, ".rou.xml"))
}

func TestConfigWriter_Write(t *testing.T) {
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()
	w := &ConfigWriter{
		FS:       fsutil.OSFileSystem{},
		Template: parse(t, runTemplate),
		Layout:   Layout{Collision: "c", Statistic: "s", Tripinfo: "t", Lanechange: "l"},
		Dir:      dir,
		Log:      logger,
		Faults:   faults.NewCollector(nil),
	}
	configs := w.Write([]Derived{{Path: "/r/route_1_tau0.8.rou.xml"}, {Path: "/r/route_1_tau1.0.rou.xml"}})

	require.Len(t, configs, 2)
	assert.Equal(t, filepath.Join(dir, "temp_config_route_1_tau0.8.rou.sumocfg"), configs[0].Path)
	assert.FileExists(t, configs[1].Path)
	assert.Equal(t, []string{
		filepath.Join("c", "collisions_route_1_tau1.0.rou.xml"),
		filepath.Join("s", "statistics_route_1_tau1.0.rou.xml"),
		filepath.Join("t", "tripinfo_route_1_tau1.0.rou.xml"),
		filepath.Join("l", "lanechange_route_1_tau1.0.rou.xml"),
	}, configs[1].OutputPaths())
}
