// Package config loads the operator's settings from a YAML file via viper,
// with the file watched for changes so that Current returns updated values
// without a restart. The operator binary reads Current once at startup, so
// a running operator does not apply values changed later.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Settings is the full configuration surface of the operator.
type Settings struct {
	Logging  LoggingSettings  `mapstructure:"logging"`
	Operator OperatorSettings `mapstructure:"operator"`
	Cluster  ClusterSettings  `mapstructure:"cluster"`
	Priority PrioritySettings `mapstructure:"priority"`
	Workers  WorkerSettings   `mapstructure:"workers"`
}

// LoggingSettings controls the zap logger built in pkg/logging.
type LoggingSettings struct {
	Level      string `mapstructure:"level"`
	Encoding   string `mapstructure:"encoding"`
	Production bool   `mapstructure:"production"`
}

// LabelNames lets the configurable label/annotation names in §6 of the
// external interface be overridden; the zero value is the well-known
// v1alpha1 default for each.
type LabelNames struct {
	KindLabel      string `mapstructure:"kindLabel"`
	NamespaceLabel string `mapstructure:"namespaceLabel"`
	NameLabel      string `mapstructure:"nameLabel"`
	ComponentLabel string `mapstructure:"componentLabel"`
	HostsFromLabel string `mapstructure:"hostsFromLabel"`
}

// OperatorSettings is the config surface named in §6: everything the
// reconciler and kind descriptors need that isn't cluster transport tuning.
type OperatorSettings struct {
	APIGroup               string     `mapstructure:"apiGroup"`
	CRDCategories          []string   `mapstructure:"crdCategories"`
	DefaultImagePrefix     string     `mapstructure:"defaultImagePrefix"`
	DefaultImageTag        string     `mapstructure:"defaultImageTag"`
	DefaultImagePullPolicy string     `mapstructure:"defaultImagePullPolicy"`
	SchedulerName          string     `mapstructure:"schedulerName"`
	QueueName              string     `mapstructure:"queueName"`
	Labels                 LabelNames `mapstructure:"labels"`
	DefaultHosts           string     `mapstructure:"defaultHosts"`
	InitialPriority        int32      `mapstructure:"initialPriority"`
	ResourcePrefix         string     `mapstructure:"resourcePrefix"`
}

// ClusterSettings controls how pkg/cluster talks to the API server.
type ClusterSettings struct {
	Namespace          string        `mapstructure:"namespace"`
	QPS                float32       `mapstructure:"qps"`
	Burst              int           `mapstructure:"burst"`
	FieldManager       string        `mapstructure:"fieldManager"`
	ConflictRetryLimit time.Duration `mapstructure:"conflictRetryLimit"`
}

// PrioritySettings configures the PriorityClass objects the allocator
// creates. The allocator reads ClassPrefix only; BaseValue and MaxClasses
// do not bound or limit the values it hands out.
type PrioritySettings struct {
	BaseValue   int32  `mapstructure:"baseValue"`
	MaxClasses  int    `mapstructure:"maxClasses"`
	ClassPrefix string `mapstructure:"classPrefix"`
}

// WorkerSettings tunes the controller workqueues.
type WorkerSettings struct {
	BenchmarkWorkers    int           `mapstructure:"benchmarkWorkers"`
	BenchmarkSetWorkers int           `mapstructure:"benchmarkSetWorkers"`
	ResyncPeriod        time.Duration `mapstructure:"resyncPeriod"`
	SummariseRetryDelay time.Duration `mapstructure:"summariseRetryDelay"`
}

// Default returns the settings the operator runs with when no config file
// values override them.
func Default() Settings {
	return Settings{
		Logging: LoggingSettings{Level: "info", Encoding: "json", Production: true},
		Operator: OperatorSettings{
			APIGroup:               "perftest.stackhpc.com",
			CRDCategories:          []string{"perftest"},
			DefaultImagePrefix:     "ghcr.io/stackhpc/perftest",
			DefaultImageTag:        "latest",
			DefaultImagePullPolicy: "IfNotPresent",
			SchedulerName:          "volcano",
			QueueName:              "default",
			Labels: LabelNames{
				KindLabel:      "perftest.stackhpc.com/benchmark-kind",
				NamespaceLabel: "perftest.stackhpc.com/benchmark-namespace",
				NameLabel:      "perftest.stackhpc.com/benchmark-name",
				ComponentLabel: "perftest.stackhpc.com/benchmark-component",
				HostsFromLabel: "perftest.stackhpc.com/hosts-from",
			},
			DefaultHosts:    "127.0.0.1 localhost\n",
			InitialPriority: -1,
			ResourcePrefix:  "perftest-",
		},
		Cluster: ClusterSettings{
			QPS:                20,
			Burst:              40,
			FieldManager:       "perftest-operator",
			ConflictRetryLimit: 10 * time.Second,
		},
		Priority: PrioritySettings{
			BaseValue:   1000000,
			MaxClasses:  1000,
			ClassPrefix: "perftest-",
		},
		Workers: WorkerSettings{
			BenchmarkWorkers:    4,
			BenchmarkSetWorkers: 2,
			ResyncPeriod:        10 * time.Minute,
			SummariseRetryDelay: 5 * time.Second,
		},
	}
}

var (
	mu      sync.RWMutex
	current = Default()
)

// Load reads settings from the given file, merging over the defaults, and
// watches the file for subsequent changes. path may be empty, in which
// case the defaults are used unmodified and no watch is installed.
func Load(path string, onChange func(Settings)) error {
	if path == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	settings := Default()
	if err := v.Unmarshal(&settings); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	store(settings)

	v.OnConfigChange(func(e fsnotify.Event) {
		updated := Default()
		if err := v.Unmarshal(&updated); err != nil {
			return
		}
		store(updated)
		if onChange != nil {
			onChange(updated)
		}
	})
	v.WatchConfig()

	return nil
}

func store(s Settings) {
	mu.Lock()
	defer mu.Unlock()
	current = s
}

// Current returns the most recently loaded settings.
func Current() Settings {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// YAML renders s back out as YAML, for the operator's --print-config flag.
func (s Settings) YAML() (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("config: marshalling settings: %w", err)
	}
	return string(out), nil
}
