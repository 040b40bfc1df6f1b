package cmd

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/tanq16/hreq/internal/output"
	"github.com/tanq16/hreq/internal/request"
)

func newGetCmd() *cobra.Command {
	var opts requestOptions
	var head bool

	cmd := &cobra.Command{
		Use:   "get [URL] [--output OUTPUT_PATH] [--resume]",
		Short: "Send a GET request and print or save the response",
		Long: `Send a GET request. Without a destination the body is printed to stdout.

Examples:
  hreq get https://example.com -i
  hreq get https://example.com/big.iso -o big.iso --resume
  hreq get https://example.com/big.iso --s3 s3://bucket/big.iso`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			b := request.New(args[0])
			if head {
				b.Method(http.MethodHead)
				opts.include = true
			}
			if err := runRequest(cmd.Context(), b, opts, os.Stdout); err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Save the body to this file")
	cmd.Flags().BoolVarP(&opts.resume, "resume", "r", false, "Continue from an existing partial file")
	cmd.Flags().BoolVar(&opts.noFollow, "no-follow", false, "Do not follow redirects")
	cmd.Flags().BoolVarP(&opts.include, "include", "i", false, "Print status and response headers")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Hide the progress bar")
	cmd.Flags().BoolVarP(&head, "head", "I", false, "Send a HEAD request and print headers only")
	cmd.Flags().StringVar(&opts.s3Target, "s3", "", "Stream the body into an S3 object (s3://BUCKET/KEY)")
	cmd.Flags().StringVar(&opts.s3Profile, "profile", "", "AWS profile for --s3")
	return cmd
}
