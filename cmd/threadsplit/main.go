// Command threadsplit runs the size and time split strategies over integer
// vectors and prints the results.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/baxromumarov/threadsplit"
	"github.com/baxromumarov/threadsplit/internal/config"
	"github.com/baxromumarov/threadsplit/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	configFile string
	envFile    string
	dev        bool
}

func newRootCmd() *cobra.Command {
	var rf rootFlags

	root := &cobra.Command{
		Use:          "threadsplit",
		Short:        "Apply a transformation sequentially or in parallel chunks",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&rf.configFile, "config", "", "config file (yaml, json, toml, ...)")
	root.PersistentFlags().StringVar(&rf.envFile, "env-file", "", "dotenv file loaded before reading THREADSPLIT_* variables")
	root.PersistentFlags().BoolVar(&rf.dev, "dev", false, "human-readable log output")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newDemoCmd(&rf),
		newStrategyCmd(&rf, "size", "Split by input length", ptr(threadsplit.BySize)),
		newStrategyCmd(&rf, "time", "Split once a time budget is spent", ptr(threadsplit.ByTime)),
		newStrategyCmd(&rf, "run", "Split with the configured strategy", nil),
	)
	return root
}

func ptr[T any](v T) *T {
	return &v
}

// setup resolves the settings of cmd and installs the process logger.
func setup(cmd *cobra.Command, rf *rootFlags) (config.Settings, func(), error) {
	s, err := config.Load(rf.configFile, rf.envFile, cmd.Flags())
	if err != nil {
		return config.Settings{}, nil, err
	}
	l, err := log.New(s.LogLevel, rf.dev)
	if err != nil {
		return config.Settings{}, nil, err
	}
	restore := log.Init(l)
	return s, func() {
		_ = l.Sync()
		restore()
	}, nil
}

func newDemoCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run both strategies on the built-in vectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, done, err := setup(cmd, rf)
			if err != nil {
				return err
			}
			defer done()

			opts := append(s.Options(), threadsplit.WithLogger(log.L()))
			w := cmd.OutOrStdout()

			if err := runAndPrint(cmd.Context(), w, threadsplit.BySize, smallVector(), opts); err != nil {
				return err
			}
			return runAndPrint(cmd.Context(), w, threadsplit.ByTime, largeVector(), opts)
		},
	}
}

func newStrategyCmd(rf *rootFlags, use, short string, strategy *threadsplit.Strategy) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, done, err := setup(cmd, rf)
			if err != nil {
				return err
			}
			defer done()

			st := s.StrategyValue()
			if strategy != nil {
				st = *strategy
			}
			in := s.Input
			if len(in) == 0 {
				in = smallVector()
				if st == threadsplit.ByTime {
					in = largeVector()
				}
			}

			opts := append(s.Options(), threadsplit.WithLogger(log.L()))
			return runAndPrint(cmd.Context(), cmd.OutOrStdout(), st, in, opts)
		},
	}
}

func runAndPrint(ctx context.Context, w io.Writer, st threadsplit.Strategy, in []int, opts []threadsplit.Option) error {
	start := time.Now()
	out, err := threadsplit.Split(ctx, st, in, threadsplit.Func[int](threadsplit.Double[int]), opts...)
	if err != nil {
		return err
	}
	log.L().Info("split finished",
		zap.Stringer("strategy", st),
		zap.Int("len", len(in)),
		zap.Duration("elapsed", time.Since(start)),
	)

	fmt.Fprintln(w, "Initial vec:", in)
	fmt.Fprintln(w, "Result vec:", out)
	return nil
}

// smallVector is 1..5.
func smallVector() []int {
	return []int{1, 2, 3, 4, 5}
}

// largeVector is 48 elements cycling through 1..13.
func largeVector() []int {
	v := make([]int, 48)
	for i := range v {
		v[i] = i%13 + 1
	}
	return v
}
