// Command arbor inspects and edits application settings stored through the
// arbor schema layer, on a local bbolt file or on DynamoDB.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execRootCmd(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// options holds the persistent flags shared by every command.
type options struct {
	backend       string
	boltPath      string
	tablePrefix   string
	counterShards int
	profile       string
	endpoint      string
	region        string
	verbose       bool

	logger *slog.Logger
}

func execRootCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootCmd := newRootCmd(stdout, stderr)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:          "arbor",
		Short:        "Settings management utility",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
			switch opts.backend {
			case backendBolt, backendDynamo:
				return nil
			}
			return fmt.Errorf("unknown backend %q: want %s or %s", opts.backend, backendBolt, backendDynamo)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.backend, "backend", backendBolt, "Storage backend: bolt or dynamodb")
	flags.StringVar(&opts.boltPath, "bolt-path", "arbor.db", "Path to the bbolt database file")
	flags.StringVar(&opts.tablePrefix, "table-prefix", "arbor_", "DynamoDB table name prefix")
	flags.IntVar(&opts.counterShards, "counter-shards", 1, "DynamoDB id counter shards per kind")
	flags.StringVar(&opts.profile, "profile", "", "AWS shared config profile")
	flags.StringVar(&opts.endpoint, "endpoint", "", "DynamoDB endpoint override, e.g. http://localhost:8000")
	flags.StringVar(&opts.region, "region", "", "AWS region override")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log store operations")

	rootCmd.AddCommand(
		newConfigCmd(opts),
		newTablesCmd(opts),
		newServeCmd(opts),
	)
	return rootCmd
}
