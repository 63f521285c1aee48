package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvmerge/internal/config"
	"github.com/JonMunkholm/csvmerge/internal/core"
	"github.com/JonMunkholm/csvmerge/internal/logging"
)

// errReported marks a failure whose envelope has already been printed.
var errReported = errors.New("command failed")

// app carries state shared by the subcommands.
type app struct {
	cfg     *config.Config
	verbose bool
	start   time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "csvmerge",
		Short: "Merge delimited text files by interleaving their rows",
		Long: `csvmerge admits .csv and .txt files, interleaves their rows into one table
and writes the result as text, xlsx, sqlite or postgres.

The widest file is the reference: its header becomes the output header and
the merge runs as many passes as the shortest file has data rows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.start = time.Now()
			cfg, err := config.Load()
			if err != nil {
				return a.fail(cmd.OutOrStdout(), Output{}, fmt.Errorf("configuration: %w", err))
			}
			a.cfg = cfg

			level := cfg.Logging.Level
			if a.verbose {
				level = "debug"
			}
			logging.SetupCLI(level, cfg.Logging.Format)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log at debug level on stderr")

	root.AddCommand(a.newMergeCmd(), a.newValidateCmd())
	return root
}

func (a *app) ingestOptions() core.IngestOptions {
	return core.IngestOptions{
		AllowedExtensions: a.cfg.Ingest.AllowedExtensions,
		MaxFileSize:       a.cfg.Ingest.MaxFileSize,
		Delimiter:         a.cfg.Ingest.DelimiterRune(),
	}
}

// Output is the JSON result envelope printed by every command.
type Output struct {
	Success   bool         `json:"success"`
	Output    string       `json:"output,omitempty"`
	Rows      int          `json:"rows"`
	RowBudget int          `json:"row_budget"`
	Partial   bool         `json:"partial"`
	Files     []FileResult `json:"files,omitempty"`
	Error     string       `json:"error,omitempty"`
	Code      string       `json:"code,omitempty"`
	Duration  string       `json:"duration"`
}

// FileResult reports one input file.
type FileResult struct {
	Path       string `json:"path"`
	Valid      bool   `json:"valid"`
	FieldCount int    `json:"field_count,omitempty"`
	Rows       int    `json:"rows,omitempty"`
	HasHeader  bool   `json:"has_header,omitempty"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
}

func (a *app) succeed(w io.Writer, out Output) error {
	out.Success = true
	out.Duration = time.Since(a.start).String()
	return emitJSON(w, out)
}

// fail prints the error envelope and returns errReported so main exits non-zero.
func (a *app) fail(w io.Writer, out Output, err error) error {
	out.Success = false
	out.Error = err.Error()
	if core.IsUserFacing(err) {
		out.Code = core.MapError(err).Code
	}
	out.Duration = time.Since(a.start).String()
	if encErr := emitJSON(w, out); encErr != nil {
		return encErr
	}
	return errReported
}

func emitJSON(w io.Writer, out Output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
