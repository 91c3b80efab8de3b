// Package config loads the settings of the threadsplit command from
// defaults, an optional config file, THREADSPLIT_* environment variables and
// command-line flags, in increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/baxromumarov/threadsplit"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "THREADSPLIT"

// ErrInvalidSetting is returned by Validate and Load for values out of range.
var ErrInvalidSetting = errors.New("config: invalid setting")

// Settings is the resolved configuration of one command run.
type Settings struct {
	Strategy         string `mapstructure:"strategy"`
	SizeThreshold    int    `mapstructure:"size_threshold"`
	TimeBudgetMicros int64  `mapstructure:"time_budget_micros"`
	ChunkSize        int    `mapstructure:"chunk_size"`
	Partitions       int    `mapstructure:"partitions"`
	// MaxWorkers of zero keeps the library default.
	MaxWorkers int    `mapstructure:"max_workers"`
	MaxChunks  int    `mapstructure:"max_chunks"`
	Executor   string `mapstructure:"executor"`
	Policy     string `mapstructure:"policy"`
	LogLevel   string `mapstructure:"log_level"`
	Input      []int  `mapstructure:"input"`
}

// Defaults returns the settings used when no source overrides them.
func Defaults() Settings {
	return Settings{
		Strategy:         threadsplit.BySize.String(),
		SizeThreshold:    threadsplit.DefaultSizeThreshold,
		TimeBudgetMicros: threadsplit.DefaultTimeBudget.Microseconds(),
		ChunkSize:        threadsplit.DefaultChunkSize,
		Executor:         threadsplit.ExecScope.String(),
		Policy:           threadsplit.Collect.String(),
		LogLevel:         "info",
		Input:            []int{},
	}
}

// RegisterFlags adds one flag per setting to fs. Flag names use dashes
// where keys use underscores.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("strategy", d.Strategy, "split strategy: size|time")
	fs.Int("size-threshold", d.SizeThreshold, "input length from which the size strategy goes parallel")
	fs.Int64("time-budget-micros", d.TimeBudgetMicros, "microseconds the time strategy stays sequential")
	fs.Int("chunk-size", d.ChunkSize, "elements per parallel task")
	fs.Int("partitions", d.Partitions, "split each parallel region into this many chunks (0: use chunk size)")
	fs.Int("max-workers", d.MaxWorkers, "cap on live chunk goroutines (0: GOMAXPROCS)")
	fs.Int("max-chunks", d.MaxChunks, "cap on tasks per parallel batch (0: unbounded)")
	fs.String("executor", d.Executor, "parallel backend: scope|pool|errgroup|conc")
	fs.String("policy", d.Policy, "failure policy: collect|fail-fast")
	fs.String("log-level", d.LogLevel, "log level: debug|info|warn|error")
	fs.IntSlice("input", d.Input, "comma-separated input integers")
}

// Load resolves the settings. file may name a config file in any format
// viper reads; envFile may name a dotenv file whose variables are loaded
// into the environment first. Either may be empty. fs may be nil.
func Load(file, envFile string, fs *pflag.FlagSet) (Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Settings{}, fmt.Errorf("config: load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	d := Defaults()
	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("size_threshold", d.SizeThreshold)
	v.SetDefault("time_budget_micros", d.TimeBudgetMicros)
	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("partitions", d.Partitions)
	v.SetDefault("max_workers", d.MaxWorkers)
	v.SetDefault("max_chunks", d.MaxChunks)
	v.SetDefault("executor", d.Executor)
	v.SetDefault("policy", d.Policy)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("input", d.Input)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, known := keys[key]; !known {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return Settings{}, fmt.Errorf("config: bind flags: %w", bindErr)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

var keys = map[string]struct{}{
	"strategy": {}, "size_threshold": {}, "time_budget_micros": {}, "chunk_size": {},
	"partitions": {}, "max_workers": {}, "max_chunks": {}, "executor": {},
	"policy": {}, "log_level": {}, "input": {},
}

// Validate reports the first setting that is out of range or unknown.
func (s Settings) Validate() error {
	if _, err := threadsplit.ParseStrategy(s.Strategy); err != nil {
		return fmt.Errorf("%w: strategy: %v", ErrInvalidSetting, err)
	}
	if _, err := threadsplit.ParseExecutor(s.Executor); err != nil {
		return fmt.Errorf("%w: executor: %v", ErrInvalidSetting, err)
	}
	if _, err := threadsplit.ParsePolicy(s.Policy); err != nil {
		return fmt.Errorf("%w: policy: %v", ErrInvalidSetting, err)
	}
	if _, err := zapcore.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalidSetting, err)
	}

	switch {
	case s.SizeThreshold < 0:
		return fmt.Errorf("%w: size_threshold %d is negative", ErrInvalidSetting, s.SizeThreshold)
	case s.TimeBudgetMicros < 0:
		return fmt.Errorf("%w: time_budget_micros %d is negative", ErrInvalidSetting, s.TimeBudgetMicros)
	case s.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk_size %d must be positive", ErrInvalidSetting, s.ChunkSize)
	case s.Partitions < 0:
		return fmt.Errorf("%w: partitions %d is negative", ErrInvalidSetting, s.Partitions)
	case s.MaxWorkers < 0:
		return fmt.Errorf("%w: max_workers %d is negative", ErrInvalidSetting, s.MaxWorkers)
	case s.MaxChunks < 0:
		return fmt.Errorf("%w: max_chunks %d is negative", ErrInvalidSetting, s.MaxChunks)
	}
	return nil
}

// StrategyValue returns the parsed strategy. Settings must be valid.
func (s Settings) StrategyValue() threadsplit.Strategy {
	st, _ := threadsplit.ParseStrategy(s.Strategy)
	return st
}

// TimeBudget returns the time budget as a duration.
func (s Settings) TimeBudget() time.Duration {
	return time.Duration(s.TimeBudgetMicros) * time.Microsecond
}

// Options converts the settings into library options. Settings must be
// valid.
func (s Settings) Options() []threadsplit.Option {
	exec, _ := threadsplit.ParseExecutor(s.Executor)
	policy, _ := threadsplit.ParsePolicy(s.Policy)

	opts := []threadsplit.Option{
		threadsplit.WithSizeThreshold(s.SizeThreshold),
		threadsplit.WithTimeBudget(s.TimeBudget()),
		threadsplit.WithChunkSize(s.ChunkSize),
		threadsplit.WithPartitions(s.Partitions),
		threadsplit.WithMaxChunks(s.MaxChunks),
		threadsplit.WithExecutor(exec),
		threadsplit.WithPolicy(policy),
	}
	if s.MaxWorkers > 0 {
		opts = append(opts, threadsplit.WithMaxWorkers(s.MaxWorkers))
	}
	return opts
}
