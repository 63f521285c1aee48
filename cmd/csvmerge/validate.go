package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvmerge/internal/core"
)

func (a *app) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check files for extension, size, emptiness and quoting",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runValidate,
	}
}

func (a *app) runValidate(cmd *cobra.Command, args []string) error {
	opts := a.ingestOptions()
	var out Output
	invalid := 0

	for _, path := range args {
		result := FileResult{Path: path, Valid: true}
		if err := core.ValidateFile(path, opts); err != nil {
			result.Valid = false
			result.Error = err.Error()
			result.Code = core.MapError(err).Code
			invalid++
		}
		out.Files = append(out.Files, result)
	}

	if invalid > 0 {
		return a.fail(cmd.OutOrStdout(), out, fmt.Errorf("%d of %d files failed validation", invalid, len(args)))
	}
	return a.succeed(cmd.OutOrStdout(), out)
}
