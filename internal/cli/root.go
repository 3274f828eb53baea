package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sort"
	"syscall"

	"github.com/Zhima-Mochi/stock-ledger/internal/bootstrap"
	"github.com/Zhima-Mochi/stock-ledger/internal/config"
	obsinfra "github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/Zhima-Mochi/stock-ledger/internal/pkg/logging"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Format  string // "json" | "text"
	Verbose bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the stockctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stockctl",
		Short: "Administer the stock ledger",
		Long: `Administer the stock ledger directly against its stores.

Connection settings come from the same environment variables the server
reads (REDIS_ADDR, DATABASE_URL, ...), optionally loaded from --env-file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "write structured logs to stderr")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewCurrentCommand(opts))
	cmd.AddCommand(NewDeductCommand(opts))
	cmd.AddCommand(NewOfflineCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// open loads configuration and wires a started stack. The returned func closes it.
func (o *RootOptions) open(ctx context.Context) (*bootstrap.Stack, *config.Config, func(), error) {
	cfg, err := config.Load(o.EnvFile)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "load config", err)
	}

	var tel observability.Observability
	sync := func() {}
	if o.Verbose {
		base, err := logging.NewLogger(logging.Options{
			Service: cfg.Service.Name + "-cli",
			Env:     cfg.Service.Env,
			Level:   "debug",
			Output:  "stderr",
		})
		if err != nil {
			return nil, nil, nil, WrapExitError(ExitCommandError, "build logger", err)
		}
		sync = func() { _ = base.Sync() }
		tel = obsinfra.New(nil, zaplogger.New(base), nil, nil)
	}

	stack, err := bootstrap.Build(ctx, cfg, tel)
	if err != nil {
		sync()
		return nil, nil, nil, WrapExitError(ExitCommandError, "connect", err)
	}
	stack.Start(ctx)
	return stack, cfg, func() {
		stack.Close(context.WithoutCancel(ctx))
		sync()
	}, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		code := GetExitCode(err)
		if code != ExitRejected {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return code
	}
	return ExitSuccess
}
