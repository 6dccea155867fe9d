// Command simsweep runs a parameter-sweep study for the SUMO traffic
// simulator: it expands the declared attribute ranges, writes one route file
// and run configuration per combination, runs the simulator over every
// configuration, then filters and compiles the results.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/banshee-data/simsweep/internal/config"
	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/logging"
	"github.com/banshee-data/simsweep/internal/pipeline"
	"github.com/banshee-data/simsweep/internal/version"
)

// Exit codes.
const (
	exitFailure = 1
	exitConfig  = 2
)

// Submitted jobs always run to completion; an interrupt ends the process.
func main() {
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background())
	os.Exit(exitCode(err))
}

// exitCode maps a study error onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case faults.IsFatal(err):
		return exitConfig
	default:
		return exitFailure
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           "simsweep",
		Short:         "Run a SUMO parameter-sweep study end to end",
		Version:       version.String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				fmt.Fprintf(errOut, "simsweep: %v\n", err)
				return err
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat, errOut)
			if err != nil {
				fmt.Fprintf(errOut, "simsweep: %v\n", err)
				return err
			}
			log.WithField("config", cfg.String()).Info("starting study")

			sum, err := (&pipeline.Study{Config: cfg, Log: log}).Run(cmd.Context())
			if err != nil {
				log.WithError(err).Error("study aborted")
				fmt.Fprintf(errOut, "simsweep: %v\n", err)
				return err
			}

			fmt.Fprintf(out, "Artifacts generated: %d\n", sum.Generated)
			fmt.Fprintf(out, "Jobs succeeded:      %d\n", sum.Succeeded)
			fmt.Fprintf(out, "Jobs failed:         %d\n", sum.Failed)
			fmt.Fprintf(out, "Filtered matches:    %d\n", sum.Filtered)
			fmt.Fprintf(out, "Faults recorded:     %d\n", sum.Faults)
			if sum.RunID != "" {
				fmt.Fprintf(out, "Run id:              %s\n", sum.RunID)
			}
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "optional study config file (json, yaml or toml)")
	f.String("base-dir", "", "directory relative input and output paths resolve against")
	f.String("range-spec", "", "CSV table of attribute ranges")
	f.String("base-routes", "", "base route document")
	f.String("run-template", "", "simulator run configuration template")
	f.String("net-file", "", "network file to set in every run configuration")
	f.String("output-dir", "", "directory receiving every study output")
	f.String("simulator", "", "simulator binary")
	f.StringSlice("simulator-args", nil, "extra arguments passed before -c")
	f.Int("workers", 0, "number of concurrent simulator runs")
	f.String("entity-tag", "", "element whose attributes are swept")
	f.String("route-ext", "", "extension of derived route documents")
	f.String("sentinel", "", "vehicle id whose collisions are kept")
	f.Bool("no-ledger", false, "do not record the run in the SQLite ledger")
	f.Bool("no-reports", false, "skip CSV and chart compilation")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (text or json)")

	for key, flag := range map[string]string{
		config.KeyBaseDir:       "base-dir",
		config.KeyRangeSpec:     "range-spec",
		config.KeyBaseRoutes:    "base-routes",
		config.KeyRunTemplate:   "run-template",
		config.KeyNetFile:       "net-file",
		config.KeyOutputDir:     "output-dir",
		config.KeySimulator:     "simulator",
		config.KeySimulatorArgs: "simulator-args",
		config.KeyWorkers:       "workers",
		config.KeyEntityTag:     "entity-tag",
		config.KeyRouteExt:      "route-ext",
		config.KeySentinel:      "sentinel",
		config.KeyNoLedger:      "no-ledger",
		config.KeyNoReports:     "no-reports",
		config.KeyLogLevel:      "log-level",
		config.KeyLogFormat:     "log-format",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}
