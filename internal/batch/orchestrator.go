package batch

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
	"github.com/banshee-data/simsweep/internal/timeutil"
)

// DefaultWorkers is the pool width when none is configured.
const DefaultWorkers = 8

// Job is one simulator invocation.
type Job struct {
	ID         string
	ConfigPath string
	RouteFile  string
	// Outputs are the result paths the run config points at. They are
	// removed if the job fails.
	Outputs []string
}

// Status tags an Outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the result of one job.
type Outcome struct {
	Job      Job
	Status   Status
	Detail   string
	Err      *faults.Error
	Started  time.Time
	Finished time.Time
}

// Succeeded reports whether the simulator exited cleanly.
func (o Outcome) Succeeded() bool { return o.Status == StatusSuccess }

// Orchestrator fans jobs out over a bounded pool. A failing job never stops
// its siblings.
type Orchestrator struct {
	Sim     Simulator
	Workers int
	FS      fsutil.FileSystem
	Log     logrus.FieldLogger
	Faults  *faults.Collector
	// Clock stamps outcomes; nil means the wall clock.
	Clock timeutil.Clock
}

// Run executes every job and returns their outcomes in submission order.
// It returns once all jobs have finished.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) []Outcome {
	workers := o.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}

	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}

	outcomes := make([]Outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)

	o.Log.WithFields(logrus.Fields{"jobs": len(jobs), "workers": workers}).Info("starting batch")
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = o.runOne(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, oc := range outcomes {
		if !oc.Succeeded() {
			failed++
		}
	}
	o.Log.WithFields(logrus.Fields{"succeeded": len(jobs) - failed, "failed": failed}).Info("batch drained")
	return outcomes
}

func (o *Orchestrator) runOne(ctx context.Context, job Job) Outcome {
	log := o.Log.WithField("job", job.ID)
	out := Outcome{Job: job, Started: o.Clock.Now()}

	detail, err := o.Sim.Run(ctx, job.ConfigPath)
	out.Finished = o.Clock.Now()
	out.Detail = detail
	if err == nil {
		out.Status = StatusSuccess
		log.WithField("elapsed", out.Finished.Sub(out.Started)).Debug("job succeeded")
		return out
	}

	out.Status = StatusFailure
	out.Err = o.Faults.Record(faults.KindJob, "run simulator", job.ConfigPath, err)
	if rmErr := o.removeOutputs(job); rmErr != nil {
		o.Faults.Record(faults.KindCleanup, "remove partial outputs", job.ID, rmErr)
	}
	log.WithField("detail", detail).Error("job failed")
	return out
}

// removeOutputs deletes whatever the failed job left among its outputs.
func (o *Orchestrator) removeOutputs(job Job) error {
	var merr *multierror.Error
	for _, p := range job.Outputs {
		if !o.FS.Exists(p) {
			continue
		}
		if err := o.FS.Remove(p); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}
