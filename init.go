package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/rustnav/internal/config"
)

const (
	sentinelStart = "<!-- rustnav:start -->"
	sentinelEnd   = "<!-- rustnav:end -->"
)

type initOptions struct {
	dryRun bool
	force  bool
	notes  string
}

func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts initOptions
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default " + config.FileName,
		Long: `Write the default rustnav settings to path, or to ./` + config.FileName + `
when no path is given. A directory path gets ` + config.FileName + ` inside it.
An existing file is left alone unless --force is set.

With --notes, also write a rustnav usage section to an agent notes file such
as CLAUDE.md. The section is wrapped in sentinel comments so later runs
update it in place without touching surrounding content.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := config.FileName
			if len(args) > 0 {
				path = args[0]
			}
			return runInit(path, opts, stdout, stderr)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.dryRun, "dry-run", false, "print what would be written without modifying any file")
	f.BoolVar(&opts.force, "force", false, "overwrite an existing config file")
	f.StringVar(&opts.notes, "notes", "", "also update the rustnav section of this notes file")
	return cmd
}

func runInit(path string, opts initOptions, stdout, stderr io.Writer) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, config.FileName)
	}

	if opts.dryRun {
		data, err := config.Marshal(config.Default())
		if err != nil {
			return err
		}
		_, _ = stdout.Write(data)
	} else {
		if err := writeConfig(path, opts.force); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stderr, "wrote %s\n", path)
	}

	if opts.notes == "" {
		return nil
	}
	existing, _ := os.ReadFile(opts.notes)
	updated := applySection(string(existing), generateSection())
	if opts.dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}
	if err := os.WriteFile(opts.notes, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", opts.notes, err)
	}
	_, _ = fmt.Fprintf(stderr, "wrote rustnav section to %s\n", opts.notes)
	return nil
}

func writeConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return config.Save(config.Default(), path)
}

// generateSection returns the sentinel-wrapped rustnav usage block.
func generateSection() string {
	body := `## rustnav: Rust module map

Run ` + "`rustnav map`" + ` at the start of a task on an unfamiliar Rust crate. It
prints the module tree, every struct, enum and union, and the files that no
crate root reaches.

**Availability:** Check with ` + "`rustnav --version`" + ` first; skip gracefully if
not found.

**Run it:**
` + "```" + `bash
rustnav map                         # current directory
rustnav map /path/to/workspace      # explicit root
rustnav map -n 20                   # top 20 files only
rustnav map --symbol Config         # types named like Config, with their parents
rustnav map --file net/             # files under net/
` + "```" + `

**How to use the output:**

1. **Read files in ranked order.** The ` + "`files`" + ` table puts crate roots and
   heavily nested parents first.

2. **Use ` + "`symbols`" + ` to find type definitions** before searching.

3. **Check ` + "`orphans`" + ` and undeclared ` + "`modules`" + ` rows** when a file seems
   ignored by the compiler: it is missing a ` + "`mod`" + ` declaration.`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
