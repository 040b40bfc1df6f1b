package cmd

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/tanq16/hreq/internal/output"
	"github.com/tanq16/hreq/internal/request"
	"github.com/tanq16/hreq/internal/utils"
)

func newPostCmd() *cobra.Command {
	var opts requestOptions
	var (
		method  string
		params  []string
		rawData string
	)

	cmd := &cobra.Command{
		Use:   "post [URL] [-d KEY=VALUE]...",
		Short: "Send URL-encoded form parameters",
		Long: `Send a request with an application/x-www-form-urlencoded body.

Examples:
  hreq post https://example.com/form -d name="José Fino" -d age=40
  hreq post https://example.com/form --data-raw 'a=1&b=2' -X PUT`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			pairs, err := utils.ParseParamArgs(params)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			b := request.New(args[0]).Method(method)
			if rawData != "" {
				b.Parameters(rawData)
			}
			for _, pair := range pairs {
				b.Param(pair[0], pair[1])
			}
			if err := runRequest(cmd.Context(), b, opts, os.Stdout); err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&method, "request", "X", http.MethodPost, "Request method")
	cmd.Flags().StringArrayVarP(&params, "data", "d", []string{}, "Form parameter as KEY=VALUE; can be specified multiple times")
	cmd.Flags().StringVar(&rawData, "data-raw", "", "Already encoded form body")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Save the body to this file")
	cmd.Flags().BoolVar(&opts.noFollow, "no-follow", false, "Do not follow redirects")
	cmd.Flags().BoolVarP(&opts.include, "include", "i", false, "Print status and response headers")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Hide the progress bar")
	return cmd
}
