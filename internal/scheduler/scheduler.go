package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/tanq16/hreq/internal/output"
	"github.com/tanq16/hreq/internal/request"
	"github.com/tanq16/hreq/internal/transport"
	"github.com/tanq16/hreq/internal/utils"
)

type job struct {
	id    int
	entry utils.BatchEntry
}

// Run downloads every entry with resume enabled on numWorkers workers sharing one
// transport. Failures do not stop the batch; they are returned together.
func Run(ctx context.Context, entries []utils.BatchEntry, numWorkers int, client transport.Adapter, w io.Writer) error {
	numWorkers = max(1, min(numWorkers, utils.MaxWorkers, len(entries)))
	outputMgr := output.NewManager(w)

	jobCh := make(chan job, len(entries))
	for _, entry := range entries {
		jobCh <- job{id: outputMgr.Register(entry.OutputPath), entry: entry}
	}
	close(jobCh)

	outputMgr.StartDisplay()
	var (
		mu   sync.Mutex
		errs *multierror.Error
		wg   sync.WaitGroup
	)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := range jobCh {
				err := processJob(ctx, j, client, outputMgr)
				if err != nil {
					log.Debug().Str("op", "scheduler/run").Int("worker", workerID).Err(err).Msgf("Job %s failed", j.entry.OutputPath)
					mu.Lock()
					errs = multierror.Append(errs, fmt.Errorf("%s: %w", j.entry.OutputPath, err))
					mu.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()
	outputMgr.StopDisplay()
	return errs.ErrorOrNil()
}

func processJob(ctx context.Context, j job, client transport.Adapter, outputMgr *output.Manager) error {
	if err := ctx.Err(); err != nil {
		outputMgr.ReportError(j.id, err)
		return err
	}
	outputMgr.SetMessage(j.id, "Downloading "+j.entry.OutputPath)
	b := request.New(j.entry.URL).
		DownloadTo(j.entry.OutputPath).
		AllowResume(true).
		Transport(client).
		OnProgress(func(downloaded, total int64) {
			outputMgr.SetProgress(j.id, downloaded, total)
		})
	for name, value := range utils.ParseHeaderArgs(j.entry.Headers) {
		b.AddHeader(name, value)
	}
	req, err := b.Build()
	if err != nil {
		outputMgr.ReportError(j.id, err)
		return err
	}
	if err := req.Start(ctx); err != nil {
		outputMgr.ReportError(j.id, err)
		return err
	}
	msg := fmt.Sprintf("Completed %s (%s)", j.entry.OutputPath, utils.FormatBytes(uint64(req.TotalBytesRead())))
	if code := req.ResponseCode(); code == http.StatusRequestedRangeNotSatisfiable {
		msg = fmt.Sprintf("Completed %s (already complete)", j.entry.OutputPath)
	}
	outputMgr.Complete(j.id, msg)
	return nil
}

// Summary formats a batch error for the terminal, one failure per line.
func Summary(err error) string {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return err.Error()
	}
	lines := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}
