package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/tanq16/hreq/internal/output"
	"github.com/tanq16/hreq/internal/request"
	"github.com/tanq16/hreq/internal/sink"
	"github.com/tanq16/hreq/internal/transport"
	"github.com/tanq16/hreq/internal/utils"
)

type requestOptions struct {
	outputPath string
	resume     bool
	noFollow   bool
	include    bool
	quiet      bool
	s3Target   string
	s3Profile  string
}

// runRequest attaches the destination chosen on the command line, runs the request
// until it ends or the process is interrupted, and prints the outcome to stdout.
func runRequest(ctx context.Context, b *request.Builder, opts requestOptions, stdout io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b.FollowRedirects(!opts.noFollow).
		Transport(transport.NewClient(globalHTTPConfig)).
		OnRedirect(func(r *request.Request) {
			log.Info().Str("op", "cmd/process").Msgf("Redirect %d from %s to %s", r.ResponseCode(), r.URL(), r.Header().Get("Location"))
		})

	var (
		s3w      *sink.S3Writer
		progress *output.Progress
		savedAt  string
	)
	switch {
	case opts.outputPath != "" && opts.s3Target != "":
		return errors.New("--output and --s3 cannot be used together")
	case opts.resume && opts.outputPath == "":
		return errors.New("--resume requires --output")
	case opts.outputPath != "":
		savedAt = opts.outputPath
		if _, err := os.Stat(savedAt); err == nil {
			savedAt = utils.RenewOutputPath(savedAt)
			log.Info().Str("op", "cmd/process").Msgf("%s exists, saving to %s", opts.outputPath, savedAt)
		}
		b.DownloadTo(savedAt).AllowResume(opts.resume)
		if !opts.quiet {
			progress = output.NewProgress(os.Stderr, "downloading")
			b.OnProgress(progress.Update)
		}
	case opts.s3Target != "":
		bucket, key, err := sink.ParseS3URL(opts.s3Target)
		if err != nil {
			return err
		}
		client, err := sink.NewS3Client(ctx, opts.s3Profile)
		if err != nil {
			return err
		}
		s3w = sink.NewS3Writer(ctx, client, bucket, key)
		b.StreamTo(s3w)
		savedAt = opts.s3Target
	}

	req, err := b.Build()
	if err != nil {
		if s3w != nil {
			s3w.Abort(err)
		}
		return err
	}
	err = req.Start(ctx)
	if progress != nil {
		progress.Finish()
	}
	code := req.ResponseCode()
	stored := code < 300 || code > 399
	if s3w != nil {
		if err != nil {
			s3w.Abort(err)
		} else if !stored {
			s3w.Abort(fmt.Errorf("status %d", code))
		} else if closeErr := s3w.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if opts.include && req.ResponseCode() != 0 {
		output.PrintHeaders(stdout, req.ResponseCode(), req.Header())
		fmt.Fprintln(stdout)
	}
	if req.Config().Destination.Kind() == sink.KindMemory {
		stdout.Write(req.ResponseData())
	}

	var pe *request.PartialDownloadError
	switch {
	case errors.As(err, &pe):
		output.PrintWarning(fmt.Sprintf("Interrupted with %s on disk; rerun with --resume to continue", utils.FormatBytes(uint64(pe.BytesOnDisk))))
		return err
	case err != nil:
		return err
	}
	if savedAt != "" && !stored {
		output.PrintWarning(fmt.Sprintf("Nothing saved to %s (status %d)", savedAt, code))
		return nil
	}
	if savedAt != "" {
		output.PrintSuccess(fmt.Sprintf("%s Saved %s (status %d, %s read)", output.StyleSymbols["pass"], savedAt, req.ResponseCode(), utils.FormatBytes(uint64(req.TotalBytesRead()))))
	}
	return nil
}
