package report

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
)

// ChartFile is the HTML report written into the output directory.
const ChartFile = "sweep_report.html"

// RenderChart writes an HTML page with the collision count of every run
// and, when a summary is available, the mean per swept attribute value.
func RenderChart(fsys fsutil.FileSystem, path string, st *Statistics) error {
	names, counts := st.CollisionsByRoute()

	data := make([]opts.BarData, len(counts))
	for i, c := range counts {
		data[i] = opts.BarData{Value: c}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Sweep report", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Collisions per run", Subtitle: fmt.Sprintf("runs=%d", len(counts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "route"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "collisions"}),
	)
	bar.SetXAxis(names).
		AddSeries("collisions", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(bar)

	for _, attr := range st.Attributes {
		var (
			x []string
			y []opts.BarData
		)
		for _, s := range st.Summary {
			if s.Attribute != attr {
				continue
			}
			x = append(x, s.Value)
			y = append(y, opts.BarData{Value: s.Mean, Name: fmt.Sprintf("%s=%s n=%d sd=%.3f", attr, s.Value, s.Runs, s.StdDev)})
		}
		if len(x) == 0 {
			continue
		}
		mean := charts.NewBar()
		mean.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{Title: "Mean collisions by " + attr}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: attr}),
		)
		mean.SetXAxis(x).AddSeries("mean", y)
		page.AddCharts(mean)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return faults.New(faults.KindWrite, "render chart", path, err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return faults.New(faults.KindWrite, "write chart", path, err)
	}
	return nil
}
