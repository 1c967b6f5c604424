// rustnav is a language server for Rust workspaces. It tracks the module
// tree, reports syntax errors, offers missing `mod` declarations and jumps
// to type definitions. The map command prints the same analysis in TOON
// format for offline use.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phobologic/rustnav/internal/config"
	"github.com/phobologic/rustnav/internal/filter"
	"github.com/phobologic/rustnav/internal/graph"
	"github.com/phobologic/rustnav/internal/logging"
	"github.com/phobologic/rustnav/internal/server"
	"github.com/phobologic/rustnav/internal/toon"
	"github.com/phobologic/rustnav/internal/workspace"
)

var version = "dev"

const (
	flagConfig   = "config"
	flagFile     = "file"
	flagSymbol   = "symbol"
	flagMaxFiles = "max-files"
	flagRaw      = "raw"
)

const agentContext = `# Workspace Map

Module tree of a Rust workspace. Files are ranked by their position in the
tree (crate roots first). parent is the file whose module tree includes the
row; an empty parent outside a crate root means the file is an orphan.
modules lists each parent link and whether the parent declares it with mod.

`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg, stdin, stdout, stderr)
	}

	root := &cobra.Command{
		Use:   "rustnav",
		Short: "Language server for Rust module trees",
		Long: `rustnav tracks the module tree of a Rust workspace.

Run without a command it serves the Language Server Protocol on stdin and
stdout. Logs go to stderr.`,
		Version:       version,
		Args:          cobra.NoArgs,
		RunE:          serve,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("rustnav {{.Version}}\n")
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&configPath, flagConfig, "", "config file (default ./"+config.FileName+")")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve LSP on stdin and stdout",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})
	root.AddCommand(newMapCmd(&configPath, stdout, stderr))
	root.AddCommand(newInitCmd(stdout, stderr))
	return root
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.FileName
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, stderr io.Writer) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return logging.New(level, stderr), nil
}

// stdio joins the process streams into the connection the server reads.
// Closing it leaves the process streams open.
type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return nil }

func runServe(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer) error {
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting", zap.String("version", version))
	return server.Run(ctx, stdio{Reader: stdin, Writer: stdout}, server.Options{
		Config:  cfg,
		Version: version,
		Logger:  logger,
	})
}

type mapOptions struct {
	file     string
	symbol   string
	maxFiles int
	raw      bool
}

func newMapCmd(configPath *string, stdout, stderr io.Writer) *cobra.Command {
	var opts mapOptions
	cmd := &cobra.Command{
		Use:   "map [root...]",
		Short: "Print the workspace module tree in TOON format",
		Long: `Walk one or more workspace roots and print the module tree: files with
their parent modules, type definitions, module edges and orphan files.

Roots default to the configured roots, then the current directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runMap(cmd.Context(), cfg, args, opts, stdout, stderr)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.file, flagFile, "f", "", "only files whose path contains this substring")
	f.StringVarP(&opts.symbol, flagSymbol, "s", "", "only types whose name contains this substring")
	f.IntVarP(&opts.maxFiles, flagMaxFiles, "n", 0, "maximum number of files to include")
	f.BoolVar(&opts.raw, flagRaw, false, "omit the explanatory header")
	return cmd
}

func runMap(ctx context.Context, cfg *config.Config, args []string, opts mapOptions, stdout, stderr io.Writer) error {
	roots, err := mapRoots(cfg, args)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db := workspace.New(nil, logger)
	report, err := db.LoadWorkspace(ctx, roots, workspace.WalkOptions{
		Exclude:          cfg.Exclude,
		RespectGitignore: cfg.RespectGitignore,
		Workers:          cfg.PrefetchWorkers,
	})
	if err != nil {
		return fmt.Errorf("walking workspace: %w", err)
	}
	if report.Discovered == 0 {
		return fmt.Errorf("no Rust files found")
	}

	wm := graph.Build(db, filepath.Base(roots[0]), roots[0])
	if opts.symbol != "" {
		wm = filter.FilterBySymbol(wm, opts.symbol)
	}
	if opts.file != "" {
		wm = filter.FilterByFile(wm, opts.file)
	}
	wm = filter.SelectFiles(wm, opts.maxFiles)

	if !opts.raw {
		_, _ = fmt.Fprint(stdout, agentContext)
	}
	_, _ = fmt.Fprintln(stdout, toon.Encode(wm))
	return nil
}

// mapRoots resolves the roots to walk: arguments, then configured roots,
// then the working directory.
func mapRoots(cfg *config.Config, args []string) ([]string, error) {
	roots := args
	if len(roots) == 0 {
		roots = cfg.RootPaths()
	}
	if len(roots) == 0 {
		roots = []string{"."}
	}

	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		path, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("resolving root: %w", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("root path: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s: not a directory", path)
		}
		if real, err := filepath.EvalSymlinks(path); err == nil {
			path = real
		}
		abs = append(abs, path)
	}
	return abs, nil
}
