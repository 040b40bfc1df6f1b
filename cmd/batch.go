package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tanq16/hreq/internal/output"
	"github.com/tanq16/hreq/internal/scheduler"
	"github.com/tanq16/hreq/internal/transport"
	"github.com/tanq16/hreq/internal/utils"
)

func newBatchCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [--workers N]",
		Short: "Download many files from a YAML list, resuming partial files",
		Long: `Download every entry of a YAML file. Each entry has a link, an optional
output path (op) and optional extra headers:

  - link: https://example.com/a.iso
    op: downloads/a.iso
  - link: https://example.com/b.zip
    headers: ["X-Token: abc"]`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := utils.ReadBatchFile(args[0])
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			httpConfig := globalHTTPConfig
			httpConfig.HighThreadMode = workers > 8
			client := transport.NewClient(httpConfig)
			if err := scheduler.Run(ctx, entries, workers, client, os.Stdout); err != nil {
				stop()
				output.PrintError("Encountered failed download(s):\n" + scheduler.Summary(err))
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", utils.DefaultWorkers, "Number of downloads to run in parallel")
	return cmd
}
