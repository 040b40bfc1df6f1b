package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress renders a byte progress bar fed by a request progress hook.
type Progress struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
	max int64
}

func NewProgress(w io.Writer, description string) *Progress {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
	)
	return &Progress{bar: bar, max: -1}
}

// Update matches the request progress hook signature. total is -1 when the
// server did not declare a length.
func (p *Progress) Update(downloaded, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if total >= 0 && total != p.max {
		p.bar.ChangeMax64(total)
		p.max = total
	}
	p.bar.Set64(downloaded)
}

func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar.Finish()
}
