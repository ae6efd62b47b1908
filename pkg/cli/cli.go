package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flowshot-io/zipdir/pkg/archiver"
	"github.com/flowshot-io/zipdir/pkg/config"
	"github.com/flowshot-io/zipdir/pkg/logger"
)

// Exit codes, one per failure kind.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitUsage           = 2
	ExitNotFound        = 3
	ExitNotADirectory   = 4
	ExitDanglingSymlink = 5
	ExitIO              = 6
	ExitOutputWrite     = 7
)

// usageError marks failures caused by how the command was invoked.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

// NewRootCommand builds the zipdir command. Logs go to stderr.
func NewRootCommand(stderr io.Writer) *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "zipdir --src DIR --out PATH",
		Short: "Package a directory tree into a single zip archive",
		Long: `zipdir writes every file and directory under DIR into one zip archive.
Entries are stored under the directory's own name, symlinks are followed and
".zip" is appended to PATH when missing. An existing archive at PATH is
replaced. SRC and OUT may also be given as positional arguments.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(2)(cmd, args); err != nil {
				return &usageError{err: err}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Positional arguments fill whichever paths the flags left unset.
			for _, arg := range args {
				switch {
				case cfg.Source == "":
					cfg.Source = arg
				case cfg.Output == "":
					cfg.Output = arg
				default:
					return &usageError{err: fmt.Errorf("unexpected argument %q: --src and --out are already set", arg)}
				}
			}

			if err := cfg.Validate(); err != nil {
				return &usageError{err: err}
			}

			return run(cmd.Context(), cmd.OutOrStdout(), stderr, cfg)
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Source, "src", "s", "", "directory to archive")
	flags.StringVarP(&cfg.Output, "out", "o", "", "archive path, \".zip\" is appended when missing")
	flags.StringVar(&cfg.DanglingSymlinks, "dangling-symlinks", cfg.DanglingSymlinks, "what to do with symlinks that cannot be resolved: fail or skip")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn or error")
	flags.BoolVar(&cfg.PrettyLogs, "pretty", false, "human readable logs instead of JSON")

	return cmd
}

func run(ctx context.Context, stdout io.Writer, stderr io.Writer, cfg config.Config) error {
	log := logger.New(&logger.Options{
		Pretty: cfg.PrettyLogs,
		Level:  cfg.LogLevel,
		Out:    stderr,
	})

	a := archiver.New(&archiver.Options{
		Logger:           log,
		DanglingSymlinks: cfg.SymlinkPolicy(),
	})

	path, err := a.Create(ctx, cfg.Source, cfg.Output)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "archive written: %s\n", path)
	return nil
}

// Run executes the command with args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) int {
	// cobra falls back to os.Args when given nil.
	if args == nil {
		args = []string{}
	}

	cmd := NewRootCommand(stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	fmt.Fprintf(stderr, "error: %s\n", describe(err))
	return ExitCode(err)
}

// Execute runs the command against the process arguments. SIGINT and SIGTERM
// cancel the run, which removes any partially written archive.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// ExitCode maps an error returned by the command onto its exit code.
func ExitCode(err error) int {
	var (
		usageErr  *usageError
		notFound  *archiver.NotFoundError
		notADir   *archiver.NotADirectoryError
		dangling  *archiver.DanglingSymlinkError
		ioErr     *archiver.IOError
		outputErr *archiver.OutputWriteError
	)

	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usageErr):
		return ExitUsage
	case errors.As(err, &notFound):
		return ExitNotFound
	case errors.As(err, &notADir):
		return ExitNotADirectory
	case errors.As(err, &dangling):
		return ExitDanglingSymlink
	case errors.As(err, &outputErr):
		return ExitOutputWrite
	case errors.As(err, &ioErr):
		return ExitIO
	default:
		return ExitFailure
	}
}

func describe(err error) string {
	var (
		notFound  *archiver.NotFoundError
		notADir   *archiver.NotADirectoryError
		dangling  *archiver.DanglingSymlinkError
		ioErr     *archiver.IOError
		outputErr *archiver.OutputWriteError
	)

	switch {
	case errors.As(err, &notFound):
		return fmt.Sprintf("missing source: %v", err)
	case errors.As(err, &notADir):
		return fmt.Sprintf("not a directory: %v", err)
	case errors.As(err, &dangling):
		return fmt.Sprintf("dangling symlink: %v (use --dangling-symlinks=skip to leave it out)", err)
	case errors.As(err, &outputErr):
		return fmt.Sprintf("output write failure: %v", err)
	case errors.As(err, &ioErr):
		return fmt.Sprintf("I/O failure: %v", err)
	default:
		return err.Error()
	}
}
