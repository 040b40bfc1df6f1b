package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tanq16/hreq/internal/ledger"
	"github.com/tanq16/hreq/internal/output"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [DIR | OUTPUT_PATH]",
		Short: "Remove partial download files (*" + ledger.PartialSuffix + ")",
		Long: `Remove partial download files. With a directory (default: current directory)
every partial file directly inside it is removed; with an output path only that
download's partial file is removed.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			removed, err := cleanPartials(args)
			for _, path := range removed {
				output.PrintDetail("Removed " + path)
			}
			if err != nil {
				output.PrintError(fmt.Sprintf("Error cleaning partial files: %v", err))
				os.Exit(1)
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d partial file(s)", len(removed)))
		},
	}
}

func cleanPartials(args []string) ([]string, error) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return ledger.Clean(target)
	}
	partial := ledger.PartialPath(target)
	if _, err := os.Stat(partial); err != nil {
		return nil, nil
	}
	if err := ledger.Discard(target); err != nil {
		return nil, err
	}
	return []string{partial}, nil
}
