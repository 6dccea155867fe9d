// Package config loads and validates the settings of one sweep study.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
)

// EnvPrefix prefixes environment overrides, e.g. SIMSWEEP_WORKERS.
const EnvPrefix = "SIMSWEEP"

// Output directory names under OutputDir.
const (
	RouteDir      = "Route_files"
	CollisionDir  = "Collisions"
	StatisticDir  = "Statistics"
	TripinfoDir   = "Tripinfo"
	LanechangeDir = "lanechange"
	FilteredDir   = "Filtered_Collisions"
	TempConfigDir = "temp_configs"
)

// Keys shared by flags, environment and config files.
const (
	KeyBaseDir       = "base_dir"
	KeyRangeSpec     = "range_spec"
	KeyBaseRoutes    = "base_routes"
	KeyRunTemplate   = "run_template"
	KeyNetFile       = "net_file"
	KeyOutputDir     = "output_dir"
	KeySimulator     = "simulator"
	KeySimulatorArgs = "simulator_args"
	KeyWorkers       = "workers"
	KeyEntityTag     = "entity_tag"
	KeyRouteExt      = "route_ext"
	KeySentinel      = "sentinel"
	KeyNoLedger      = "no_ledger"
	KeyNoReports     = "no_reports"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"
)

// StudyConfig holds every setting of a study.
type StudyConfig struct {
	BaseDir       string   `mapstructure:"base_dir"`
	RangeSpec     string   `mapstructure:"range_spec"`
	BaseRoutes    string   `mapstructure:"base_routes"`
	RunTemplate   string   `mapstructure:"run_template"`
	NetFile       string   `mapstructure:"net_file"`
	OutputDir     string   `mapstructure:"output_dir"`
	Simulator     string   `mapstructure:"simulator"`
	SimulatorArgs []string `mapstructure:"simulator_args"`
	Workers       int      `mapstructure:"workers"`
	EntityTag     string   `mapstructure:"entity_tag"`
	RouteExt      string   `mapstructure:"route_ext"`
	Sentinel      string   `mapstructure:"sentinel"`
	NoLedger      bool     `mapstructure:"no_ledger"`
	NoReports     bool     `mapstructure:"no_reports"`
	LogLevel      string   `mapstructure:"log_level"`
	LogFormat     string   `mapstructure:"log_format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	// Keys without a default must still be registered for env overrides to
	// reach Unmarshal.
	v.SetDefault(KeyBaseDir, "")
	v.SetDefault(KeyNetFile, "")
	v.SetDefault(KeySimulatorArgs, []string{})
	v.SetDefault(KeyNoLedger, false)
	v.SetDefault(KeyNoReports, false)
	v.SetDefault(KeyRangeSpec, "Sensitivity_Analysis.csv")
	v.SetDefault(KeyBaseRoutes, "routes.rou.xml")
	v.SetDefault(KeyRunTemplate, "simulation.sumocfg")
	v.SetDefault(KeyOutputDir, "Output")
	v.SetDefault(KeySimulator, "sumo")
	v.SetDefault(KeyWorkers, 8)
	v.SetDefault(KeyEntityTag, "vType")
	v.SetDefault(KeyRouteExt, ".rou.xml")
	v.SetDefault(KeySentinel, "v_0")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// Load reads the study settings from v, layering an optional config file
// (JSON, YAML or TOML by extension) under environment variables and any
// flags already bound to v. Relative paths are resolved against BaseDir.
func Load(v *viper.Viper, configFile string) (*StudyConfig, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, faults.New(faults.KindConfiguration, "read config", configFile, err)
		}
	}

	var cfg StudyConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, faults.New(faults.KindConfiguration, "decode config", configFile, err)
	}
	cfg.resolvePaths()
	return &cfg, nil
}

func (c *StudyConfig) resolvePaths() {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) || c.BaseDir == "" {
			return p
		}
		return filepath.Join(c.BaseDir, p)
	}
	c.RangeSpec = resolve(c.RangeSpec)
	c.BaseRoutes = resolve(c.BaseRoutes)
	c.RunTemplate = resolve(c.RunTemplate)
	c.NetFile = resolve(c.NetFile)
	c.OutputDir = resolve(c.OutputDir)
}

// Validate checks that the study can start. Every failure is a
// configuration fault.
func (c *StudyConfig) Validate(fsys fsutil.FileSystem) error {
	inputs := []struct{ name, path string }{
		{"range spec", c.RangeSpec},
		{"base routes", c.BaseRoutes},
		{"run template", c.RunTemplate},
	}
	for _, in := range inputs {
		if in.path == "" {
			return faults.Newf(faults.KindConfiguration, "validate config", in.name, "path is required")
		}
		if !fsys.Exists(in.path) {
			return faults.Newf(faults.KindConfiguration, "validate config", in.path, "%s not found", in.name)
		}
	}
	if c.NetFile != "" && !fsys.Exists(c.NetFile) {
		return faults.Newf(faults.KindConfiguration, "validate config", c.NetFile, "net file not found")
	}
	if c.OutputDir == "" {
		return faults.Newf(faults.KindConfiguration, "validate config", KeyOutputDir, "output directory is required")
	}
	if c.Workers < 1 {
		return faults.Newf(faults.KindConfiguration, "validate config", KeyWorkers, "workers must be at least 1, got %d", c.Workers)
	}
	if strings.TrimSpace(c.Simulator) == "" {
		return faults.Newf(faults.KindConfiguration, "validate config", KeySimulator, "simulator binary is required")
	}
	if c.Sentinel == "" {
		return faults.Newf(faults.KindConfiguration, "validate config", KeySentinel, "sentinel id is required")
	}
	if c.EntityTag == "" {
		return faults.Newf(faults.KindConfiguration, "validate config", KeyEntityTag, "entity tag is required")
	}
	return nil
}

// Dir returns the named directory under OutputDir.
func (c *StudyConfig) Dir(name string) string {
	return filepath.Join(c.OutputDir, name)
}

// String summarizes the inputs for logging.
func (c *StudyConfig) String() string {
	return fmt.Sprintf("spec=%s routes=%s template=%s output=%s workers=%d",
		c.RangeSpec, c.BaseRoutes, c.RunTemplate, c.OutputDir, c.Workers)
}
