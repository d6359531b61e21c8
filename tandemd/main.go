// Copyright 2026 The Tandem Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command tandemd runs a fixed set of processes side by side in one
// container, relays their output, and exits when they are done.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tandem-run/tandem"
	"github.com/tandem-run/tandem/internal/config"
	"github.com/tandem-run/tandem/internal/lockfile"
	"github.com/tandem-run/tandem/internal/logging"
	"github.com/tandem-run/tandem/rest"
)

// Version information, set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

const shutdownTimeout = 5 * time.Second

// exitCodeError carries a nonzero supervisor exit code out of cobra.
type exitCodeError int

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

type flags struct {
	configFile   string
	logLevel     string
	statusListen string
	lines        int
	follow       bool
}

// overrides maps the flags that were given to config keys.
func (f *flags) overrides(cmd *cobra.Command) map[string]interface{} {
	o := map[string]interface{}{}
	if cmd.Flags().Changed("log-level") {
		o["log.level"] = f.logLevel
	}
	if cmd.Flags().Changed("status-listen") {
		o["status.listen"] = f.statusListen
		o["status.enabled"] = true
	}
	return o
}

func (f *flags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configFile, f.overrides(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "tandemd",
		Short: "tandemd - run a fixed set of processes in one container",
		Long: `tandemd launches every configured process at once, relays their output
line by line, restarts the ones marked for restart, and exits when all of
them are done.  It exits 1 once everything has ended if a critical process
ended on its own or could not be started, and 0 otherwise.  SIGINT, SIGTERM
and friends terminate the children and, barring such a failure, lead to a
clean exit 0.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(cmd, f)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "", "config file path (default: $TANDEM_CONFIG or "+config.DefaultConfigPath+")")
	pf.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	pf.StringVar(&f.statusListen, "status-listen", config.DefaultStatusListen, "status API address; setting it enables the API")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "tandemd\n")
			fmt.Fprintf(w, "  Version:    %s\n", Version)
			fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
			fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(w, "  Go Version: %s\n", runtime.Version())
			fmt.Fprintf(w, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			b, err := cfg.ToYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status [name]",
		Short: "Show the status of a running tandemd",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configFile, f.overrides(cmd))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), shutdownTimeout)
			defer cancel()
			c := rest.NewClient("http://"+cfg.Status.Listen, nil)
			if len(args) == 0 {
				return printSummary(ctx, cmd.OutOrStdout(), c)
			}
			lines := f.lines
			if f.follow {
				lines = 0
			}
			if err := printProcess(ctx, cmd.OutOrStdout(), c, args[0], lines); err != nil || !f.follow {
				return err
			}
			return follow(cmd.Context(), cmd.OutOrStdout(), c, args[0])
		},
	}
	statusCmd.Flags().IntVarP(&f.lines, "lines", "n", 20, "recent output lines to show for a process")
	statusCmd.Flags().BoolVarP(&f.follow, "follow", "f", false, "keep printing the output of a process as it arrives")

	root.AddCommand(versionCmd, configCmd, statusCmd)
	return root
}

func runSupervisor(cmd *cobra.Command, f *flags) error {
	cfg, err := f.load(cmd)
	if err != nil {
		return err
	}

	logs, err := logging.New(cfg.Log, zapcore.Lock(zapcore.AddSync(cmd.OutOrStdout())))
	if err != nil {
		return err
	}
	defer logs.Close()
	logger := logs.Events.Named(cfg.Supervisor.Name)

	ctx := cmd.Context()
	if cfg.Supervisor.LockFile != "" {
		lock, err := lockfile.Acquire(ctx, cfg.Supervisor.LockFile, cfg.Supervisor.LockWait)
		if err != nil {
			logger.Error("another supervisor is running", zap.Error(err))
			return exitCodeError(1)
		}
		defer lock.Release()
	}

	opts := []tandem.Option{
		tandem.WithName(cfg.Supervisor.Name),
		tandem.WithLogger(logger),
		tandem.WithSink(tandem.NewZapSink(logs.Relay)),
		tandem.WithOutputLogSize(cfg.Supervisor.OutputLines),
		tandem.WithStopOnEscalate(cfg.Supervisor.StopOnEscalate),
	}
	if len(cfg.Supervisor.Shell) > 0 {
		opts = append(opts, tandem.WithShell(cfg.Supervisor.Shell...))
	}
	sup, err := tandem.New(cfg.Specs(), opts...)
	if err != nil {
		return err
	}

	if cfg.Status.Enabled {
		srv, err := rest.Listen(cfg.Status.Listen, cfg.Status.MaxConns, rest.NewHandler(sup))
		if err != nil {
			return fmt.Errorf("status API: %w", err)
		}
		logger.Info("status API listening", zap.Stringer("addr", srv.Addr()))
		go func() {
			if err := srv.Serve(); err != nil {
				logger.Error("status API failed", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	if code := sup.Run(ctx); code != 0 {
		return exitCodeError(code)
	}
	return nil
}

func printSummary(ctx context.Context, w io.Writer, c *rest.Client) error {
	info, err := c.Supervisor(ctx)
	if err != nil {
		return err
	}
	names, err := c.Processes(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d live, up since %s", info.Name, info.Live, info.Created.Format(time.RFC3339))
	if info.ShutdownRequested {
		fmt.Fprintf(w, ", shutting down")
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tPID\tSTARTS\tEXIT\tOUTCOME")
	for _, name := range names {
		p, err := c.Process(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			p.Name, p.State, orDash(p.Pid != 0, fmt.Sprint(p.Pid)), p.Starts,
			orDash(p.ExitCode != nil, exitString(p.ExitCode)), orDash(p.Outcome != "", p.Outcome))
	}
	return tw.Flush()
}

func printProcess(ctx context.Context, w io.Writer, c *rest.Client, name string, lines int) error {
	p, err := c.Process(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Name:     %s\n", p.Name)
	fmt.Fprintf(w, "Command:  %s\n", p.Command)
	fmt.Fprintf(w, "Restart:  %t\n", p.Restart)
	fmt.Fprintf(w, "Critical: %t\n", p.Critical)
	fmt.Fprintf(w, "State:    %s (since %s)\n", p.State, p.TimeStamp.Format(time.RFC3339))
	if p.Pid != 0 {
		fmt.Fprintf(w, "Pid:      %d\n", p.Pid)
	}
	fmt.Fprintf(w, "Starts:   %d\n", p.Starts)
	if p.ExitCode != nil {
		fmt.Fprintf(w, "Exit:     %s\n", exitString(p.ExitCode))
	}
	if p.Outcome != "" {
		fmt.Fprintf(w, "Outcome:  %s\n", p.Outcome)
	}
	if lines <= 0 {
		return nil
	}
	li, err := c.Log(ctx, name, nil, 0)
	if err != nil {
		return err
	}
	recs := li.Records
	if len(recs) > lines {
		recs = recs[len(recs)-lines:]
	}
	for _, r := range recs {
		printRecord(w, name, r)
	}
	return nil
}

func printRecord(w io.Writer, name string, r tandem.LogRecord) {
	fmt.Fprintf(w, "[%s] [%s > %s] %s\n", r.Time.Format(logging.TimeLayout), name, r.Stream, r.Text)
}

// follow prints output until interrupted.
func follow(ctx context.Context, w io.Writer, c *rest.Client, name string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := c.Follow(ctx, name, func(r tandem.LogRecord) error {
		printRecord(w, name, r)
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func exitString(code *int) string {
	if code == nil {
		return ""
	}
	return fmt.Sprint(*code)
}

func orDash(ok bool, s string) string {
	if !ok || strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)

	var code exitCodeError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &code):
		return int(code)
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
