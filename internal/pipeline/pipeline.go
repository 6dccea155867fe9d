// Package pipeline runs a complete sweep study: load, generate, simulate,
// clean up, filter and report.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/banshee-data/simsweep/internal/batch"
	"github.com/banshee-data/simsweep/internal/config"
	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/filter"
	"github.com/banshee-data/simsweep/internal/fsutil"
	"github.com/banshee-data/simsweep/internal/logging"
	"github.com/banshee-data/simsweep/internal/report"
	"github.com/banshee-data/simsweep/internal/scenario"
	"github.com/banshee-data/simsweep/internal/store"
	"github.com/banshee-data/simsweep/internal/sweep"
	"github.com/banshee-data/simsweep/internal/timeutil"
)

// ErrorsLogFile lists every recorded fault, one per line, in the output
// directory.
const ErrorsLogFile = "errors.log"

// Summary counts what a study produced.
type Summary struct {
	RunID       string
	Entities    int
	SkippedRows int
	Generated   int
	Configs     int
	Succeeded   int
	Failed      int
	Filtered    int
	Faults      int
}

func (s Summary) String() string {
	return fmt.Sprintf("generated=%d configs=%d succeeded=%d failed=%d filtered=%d faults=%d",
		s.Generated, s.Configs, s.Succeeded, s.Failed, s.Filtered, s.Faults)
}

// Study wires the phases together.
type Study struct {
	Config *config.StudyConfig
	FS     fsutil.FileSystem
	Log    logrus.FieldLogger
	// Sim defaults to an ExecSimulator built from Config.
	Sim batch.Simulator
	// Clock defaults to the wall clock.
	Clock timeutil.Clock
}

// Run executes the study. The returned error is non-nil only for
// configuration faults, which stop the study before any batch work;
// everything else is recorded, logged and counted in the summary.
func (s *Study) Run(ctx context.Context) (*Summary, error) {
	cfg := s.Config
	fsys := s.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if s.Clock == nil {
		s.Clock = timeutil.RealClock{}
	}
	fc := faults.NewCollector(s.Log)
	sum := &Summary{}

	if err := cfg.Validate(fsys); err != nil {
		return nil, err
	}

	log := logging.Phase(s.Log, "load")
	loaded, err := sweep.LoadRangeSpecFile(cfg.RangeSpec)
	if err != nil {
		return nil, err
	}
	if loaded.Params.Len() == 0 {
		return nil, faults.Newf(faults.KindConfiguration, "load range spec", cfg.RangeSpec, "no usable rows")
	}
	sum.Entities = loaded.Params.Len()
	sum.SkippedRows = loaded.Skipped
	log.WithFields(logrus.Fields{"entities": sum.Entities, "skipped_rows": sum.SkippedRows}).Info("loaded range spec")

	base, err := scenario.LoadDocument(fsys, cfg.BaseRoutes)
	if err != nil {
		return nil, err
	}
	template, err := scenario.LoadDocument(fsys, cfg.RunTemplate)
	if err != nil {
		return nil, err
	}

	dirs := []string{
		config.RouteDir, config.CollisionDir, config.StatisticDir, config.TripinfoDir,
		config.LanechangeDir, config.FilteredDir, config.TempConfigDir,
	}
	for i, d := range dirs {
		dirs[i] = cfg.Dir(d)
	}
	if err := fsutil.EnsureDirs(fsys, dirs...); err != nil {
		return nil, faults.New(faults.KindConfiguration, "create output layout", cfg.OutputDir, err)
	}

	ledger, runID := s.openLedger()
	if ledger != nil {
		defer ledger.Close()
	}
	sum.RunID = runID

	gen := &scenario.Generator{
		FS:        fsys,
		Base:      base,
		EntityTag: cfg.EntityTag,
		Ext:       cfg.RouteExt,
		Dir:       cfg.Dir(config.RouteDir),
		Log:       logging.Phase(s.Log, "generate"),
		Faults:    fc,
	}
	derived := gen.Generate(loaded.Params)
	sum.Generated = len(derived)

	writer := &scenario.ConfigWriter{
		FS:       fsys,
		Template: template,
		NetFile:  cfg.NetFile,
		Layout: scenario.Layout{
			scenario.Collision:  cfg.Dir(config.CollisionDir),
			scenario.Statistic:  cfg.Dir(config.StatisticDir),
			scenario.Tripinfo:   cfg.Dir(config.TripinfoDir),
			scenario.Lanechange: cfg.Dir(config.LanechangeDir),
		},
		Dir:    cfg.Dir(config.TempConfigDir),
		Log:    logging.Phase(s.Log, "configure"),
		Faults: fc,
	}
	runConfigs := writer.Write(derived)
	sum.Configs = len(runConfigs)

	jobs := make([]batch.Job, len(runConfigs))
	for i, rc := range runConfigs {
		jobs[i] = batch.Job{
			ID:         strconv.Itoa(i + 1),
			ConfigPath: rc.Path,
			RouteFile:  rc.RouteFile,
			Outputs:    rc.OutputPaths(),
		}
	}
	orch := &batch.Orchestrator{
		Sim:     s.simulator(),
		Workers: cfg.Workers,
		FS:      fsys,
		Log:     logging.Phase(s.Log, "simulate"),
		Faults:  fc,
		Clock:   s.Clock,
	}
	outcomes := orch.Run(ctx, jobs)
	for _, o := range outcomes {
		if o.Succeeded() {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}

	if err := batch.Cleanup(fsys, cfg.Dir(config.TempConfigDir)); err != nil {
		fc.Record(faults.KindCleanup, "cleanup", cfg.Dir(config.TempConfigDir), err)
	}

	res, err := filter.Filter(ctx, fsys,
		cfg.Dir(config.CollisionDir), cfg.Dir(config.FilteredDir),
		filter.VictimPredicate(cfg.Sentinel), logging.Phase(s.Log, "filter"), fc)
	if err != nil {
		// Filter classifies its own faults; anything else (ctx.Err) means
		// the pass never completed.
		fc.Record(faults.KindConfiguration, "filter interrupted", cfg.Dir(config.CollisionDir), err)
	}
	sum.Filtered = len(res.Matched)

	if !cfg.NoReports {
		s.compileReports(fsys, loaded.Params, fc)
	}

	sum.Faults = fc.Len()
	s.writeErrorsLog(fsys, fc)
	if ledger != nil {
		s.finishLedger(ledger, sum, outcomes, fc)
	}

	logging.Phase(s.Log, "done").WithField("run_id", runID).Info(sum.String())
	return sum, nil
}

func (s *Study) simulator() batch.Simulator {
	if s.Sim != nil {
		return s.Sim
	}
	return batch.ExecSimulator{Binary: s.Config.Simulator, Args: s.Config.SimulatorArgs}
}

func (s *Study) compileReports(fsys fsutil.FileSystem, params *sweep.ParameterSet, fc *faults.Collector) {
	cfg := s.Config
	log := logging.Phase(s.Log, "report")
	attrs := params.Attributes()

	st, err := report.CompileStatistics(fsys, cfg.Dir(config.StatisticDir), attrs, log, fc)
	if err != nil {
		fc.Record(faults.KindWrite, "compile statistics", cfg.Dir(config.StatisticDir), err)
	}
	if st != nil {
		if err := report.RenderChart(fsys, filepath.Join(cfg.OutputDir, report.ChartFile), st); err != nil {
			fc.Record(faults.KindWrite, "render chart", cfg.OutputDir, err)
		}
	}
	if _, err := report.CompileTripinfo(fsys, cfg.Dir(config.TripinfoDir), cfg.Sentinel, attrs, log, fc); err != nil {
		fc.Record(faults.KindWrite, "compile tripinfo", cfg.Dir(config.TripinfoDir), err)
	}
	if _, err := report.CompileRoutes(fsys, cfg.Dir(config.RouteDir), cfg.EntityTag, params, log, fc); err != nil {
		fc.Record(faults.KindWrite, "compile routes", cfg.Dir(config.RouteDir), err)
	}
}

func (s *Study) writeErrorsLog(fsys fsutil.FileSystem, fc *faults.Collector) {
	var b strings.Builder
	for _, f := range fc.Faults() {
		b.WriteString(f.Error())
		b.WriteByte('\n')
	}
	path := filepath.Join(s.Config.OutputDir, ErrorsLogFile)
	if err := fsys.WriteFile(path, []byte(b.String()), 0644); err != nil {
		s.Log.WithError(err).WithField("file", path).Error("could not write errors log")
	}
}

// openLedger returns nil when the ledger is disabled or unavailable.
func (s *Study) openLedger() (*store.Store, string) {
	if s.Config.NoLedger {
		return nil, ""
	}
	log := logging.Phase(s.Log, "ledger")
	path := filepath.Join(s.Config.OutputDir, store.DefaultFile)
	ledger, err := store.Open(path, log)
	if err != nil {
		log.WithError(err).Warn("run ledger unavailable, continuing without it")
		return nil, ""
	}
	ledger.Clock = s.Clock
	runID, err := ledger.StartRun(s.Clock.Now())
	if err != nil {
		log.WithError(err).Warn("could not record run start, continuing without ledger")
		ledger.Close()
		return nil, ""
	}
	return ledger, runID
}

func (s *Study) finishLedger(ledger *store.Store, sum *Summary, outcomes []batch.Outcome, fc *faults.Collector) {
	log := logging.Phase(s.Log, "ledger").WithField("run_id", sum.RunID)
	if err := ledger.RecordOutcomes(sum.RunID, outcomes); err != nil {
		log.WithError(err).Warn("could not record job outcomes")
	}
	if err := ledger.RecordFaults(sum.RunID, fc.Faults()); err != nil {
		log.WithError(err).Warn("could not record faults")
	}
	status := store.RunCompleted
	if sum.Configs > 0 && sum.Succeeded == 0 {
		status = store.RunFailed
	}
	finished := s.Clock.Now()
	if err := ledger.FinishRun(store.Run{
		RunID:        sum.RunID,
		FinishedAt:   &finished,
		Status:       status,
		Combinations: sum.Generated,
		Succeeded:    sum.Succeeded,
		Failed:       sum.Failed,
		Filtered:     sum.Filtered,
	}); err != nil {
		log.WithError(err).Warn("could not record run result")
	}
}
