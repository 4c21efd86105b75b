package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"txview/internal/backend"
	"txview/internal/cli"
	"txview/internal/config"
	"txview/internal/log"
	"txview/internal/view"
)

// app carries the state every subcommand bootstraps from.
type app struct {
	configPath string
	envFile    string

	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "txview",
		Short: "Browse, filter, add and delete transactions held in a JSON store",
		Long: `txview serves a filterable transactions table backed by a JSON REST store,
and drives the same view from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	root.AddCommand(
		newServeCmd(a),
		newListCmd(a),
		newAddCmd(a),
		newDeleteCmd(a),
		newDiagnosticsCmd(a),
	)
	return root
}

// setup loads env, config and logger. Terminal commands log to stderr so
// their stdout stays machine readable.
func (a *app) setup(logOut io.Writer) error {
	cli.LoadEnvFile(a.envFile)

	cfg, err := cli.LoadAndValidateConfig(a.configPath)
	if err != nil {
		return err
	}
	logger, err := cli.SetupLogger(cfg, logOut)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) backend(ctx context.Context) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(a.logger).CreateBackend(ctx, bc)
}

// withView runs fn against a fresh view over the configured store.
func (a *app) withView(cmd *cobra.Command, fn func(ctx context.Context, v *view.TransactionList) error) error {
	if err := a.setup(cmd.ErrOrStderr()); err != nil {
		return err
	}
	ctx := cmd.Context()

	res, err := a.backend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			a.logger.WithComponent(log.ComponentCLI).Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()

	v := view.New(res.Store, view.WithReporter(res.Dispatcher), view.WithLogger(a.logger))
	defer v.Close()
	return fn(ctx, v)
}
