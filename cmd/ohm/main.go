// Command ohm runs the intercepting HTTPS forward proxy: it accepts
// CONNECT tunnels, terminates client TLS with a locally-signed leaf
// certificate per host, relays every request to its real origin, and
// asynchronously filters and persists a copy of the traffic.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nap32/ohm/internal/bootstrap"
	"github.com/nap32/ohm/internal/config"
)

const (
	defaultConfigPath    = "./config/config.toml"
	shutdownCloseTimeout = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run resolves the optional positional config-file path, loads
// configuration, and executes the root command. ohm takes at most one
// positional argument (the config file path); anything more exits
// with status 2 rather than being silently ignored.
func run(ctx context.Context, args []string) error {
	path, flagArgs, err := splitConfigPath(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "usage: ohm [path/to/config.toml]")
		os.Exit(2)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	root, err := newRootCommand(cfg)
	if err != nil {
		return err
	}
	root.SetArgs(flagArgs)

	return root.ExecuteContext(ctx)
}

// splitConfigPath separates a single optional positional config path
// from any flag arguments. More than one positional argument is
// rejected.
func splitConfigPath(args []string) (path string, flagArgs []string, err error) {
	path = defaultConfigPath
	positional := 0

	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			flagArgs = append(flagArgs, a)
			continue
		}
		positional++
		if positional > 1 {
			return "", nil, fmt.Errorf("too many positional arguments")
		}
		path = a
	}

	return path, flagArgs, nil
}

// newRootCommand builds the cobra command that binds CLI flags onto
// cfg's viper instance (so flags override the file/environment values
// already loaded into cfg) and, once parsed, builds and runs the
// proxy until its context is cancelled.
func newRootCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:           "ohm [path/to/config.toml]",
		Short:         "ohm: an intercepting HTTPS forward proxy",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.Build(cfg)
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}

			runErr := app.Run(cmd.Context())

			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownCloseTimeout)
			defer cancel()
			if closeErr := app.Close(closeCtx); closeErr != nil && runErr == nil {
				runErr = closeErr
			}
			return runErr
		},
	}

	if err := cfg.BindFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	return cmd, nil
}
