// Package cli implements the planner command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/planner/internal/paths"
	"github.com/mesh-intelligence/planner/internal/session"
	tablesync "github.com/mesh-intelligence/planner/internal/sync"
	"github.com/mesh-intelligence/planner/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	jsonMode  bool
	verbose   bool
}

// app is the state shared by the commands of one root command.
type app struct {
	flags       rootFlags
	configDir   string
	cfg         types.Config
	logger      *log.Logger
	logCloser   io.Closer
	session     *session.Session
	sessionOpts []session.Option
}

// Option configures the root command.
type Option func(*app)

// WithSessionOptions passes options to the session the commands attach.
func WithSessionOptions(opts ...session.Option) Option {
	return func(a *app) { a.sessionOpts = append(a.sessionOpts, opts...) }
}

// systemError marks failures of the environment rather than of the
// caller's input.
type systemError struct {
	err error
}

func (e *systemError) Error() string { return e.err.Error() }
func (e *systemError) Unwrap() error { return e.err }

func sysErr(err error) error {
	if err == nil {
		return nil
	}
	return &systemError{err: err}
}

// NewRootCmd creates the top-level "planner" command with global flags
// and all subcommands registered.
func NewRootCmd(opts ...Option) *cobra.Command {
	a := &app{}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "planner",
		Short: "Keep a guest list and a preparations checklist in a shared repository",
		Long: "Planner keeps a guest list and a preparations checklist as CSV files in a\n" +
			"remote store (a GitHub repository, a local directory or a SQLite file)\n" +
			"and publishes every edit with a conditional write, so concurrent editors\n" +
			"never overwrite each other.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $(CWD)/.planner)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "log sync activity to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newGuestsCmd(a))
	root.AddCommand(newTasksCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newWatchCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	err := root.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "planner:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps an error to the process exit code: 2 for transport,
// corrupt data, exhausted retries and other environment failures, 1 for
// everything the caller can fix.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var se *systemError
	switch {
	case errors.Is(err, types.ErrTransport),
		errors.Is(err, types.ErrCorruptData),
		errors.Is(err, types.ErrSyncExhausted),
		errors.As(err, &se):
		return exitSysError
	default:
		return exitUserError
	}
}

// attach loads the configuration, sets up logging and attaches a session.
// Commands that touch tables call it first and defer a.detach.
func (a *app) attach(cmd *cobra.Command) error {
	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysErr(fmt.Errorf("resolve config dir: %w", err))
	}
	a.configDir = dir

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, a.logCloser = newLogger(cfg.Log, a.flags.verbose, cmd.ErrOrStderr())

	opts := append([]session.Option{session.WithLogger(a.logger)}, a.sessionOpts...)
	s := session.New(opts...)
	if err := s.Attach(cfg); err != nil {
		a.closeLog()
		if errors.Is(err, session.ErrTokenMissing) {
			return err
		}
		return sysErr(fmt.Errorf("attach %s backend: %w", cfg.Backend, err))
	}
	a.session = s
	return nil
}

func (a *app) detach() {
	if a.session != nil {
		if err := a.session.Detach(); err != nil {
			a.logger.Printf("detach: %v", err)
		}
		a.session = nil
	}
	a.closeLog()
}

func (a *app) closeLog() {
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

// table returns the loaded controller for a standard table.
func (a *app) table(ctx context.Context, name string) (*tablesync.Controller, error) {
	c, err := a.session.Table(name)
	if err != nil {
		return nil, err
	}
	if err := c.Load(ctx); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return c, nil
}

// mutate attaches, applies m to the named table and detaches. It returns
// the table as saved.
func (a *app) mutate(cmd *cobra.Command, name string, m types.Mutation) (*types.Table, error) {
	if err := a.attach(cmd); err != nil {
		return nil, err
	}
	defer a.detach()

	c, err := a.table(cmd.Context(), name)
	if err != nil {
		return nil, err
	}
	if err := c.Mutate(cmd.Context(), m); err != nil {
		switch {
		case errors.Is(err, types.ErrTransport):
			return nil, fmt.Errorf("%w (the edit may not have been saved; run list to check)", err)
		case errors.Is(err, types.ErrSyncExhausted):
			return nil, fmt.Errorf("%w (run the command again to retry)", err)
		}
		return nil, err
	}
	return c.Table(), nil
}

// snapshot attaches, loads the named table and detaches.
func (a *app) snapshot(cmd *cobra.Command, name string) (*types.Table, error) {
	if err := a.attach(cmd); err != nil {
		return nil, err
	}
	defer a.detach()

	c, err := a.table(cmd.Context(), name)
	if err != nil {
		return nil, err
	}
	return c.Table(), nil
}
