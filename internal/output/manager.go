package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/tanq16/hreq/internal/utils"
)

const (
	statusPending = "pending"
	statusActive  = "active"
	statusSuccess = "success"
	statusError   = "error"
)

// JobOutput is the display state of one batch entry.
type JobOutput struct {
	ID          int
	Name        string
	Status      string
	Message     string
	Downloaded  int64
	Total       int64
	StartTime   time.Time
	LastUpdated time.Time
	Err         error
}

// Manager tracks batch jobs and renders them. On a terminal it redraws a live
// view; otherwise it only prints the final listing.
type Manager struct {
	mu       sync.RWMutex
	w        io.Writer
	live     bool
	jobs     []*JobOutput
	numLines int
	tick     time.Duration
	doneCh   chan struct{}
	wg       sync.WaitGroup
}

func NewManager(w io.Writer) *Manager {
	live := false
	if f, ok := w.(*os.File); ok {
		live = term.IsTerminal(int(f.Fd()))
	}
	return &Manager{
		w:      w,
		live:   live,
		tick:   300 * time.Millisecond,
		doneCh: make(chan struct{}),
	}
}

func (m *Manager) Register(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.jobs = append(m.jobs, &JobOutput{
		ID:          len(m.jobs) + 1,
		Name:        name,
		Status:      statusPending,
		Total:       -1,
		StartTime:   now,
		LastUpdated: now,
	})
	return len(m.jobs)
}

func (m *Manager) job(id int) *JobOutput {
	if id < 1 || id > len(m.jobs) {
		return nil
	}
	return m.jobs[id-1]
}

func (m *Manager) SetMessage(id int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j := m.job(id); j != nil {
		j.Status = statusActive
		j.Message = message
		j.LastUpdated = time.Now()
	}
}

// SetProgress has the request progress hook signature once bound to an id.
func (m *Manager) SetProgress(id int, downloaded, total int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j := m.job(id); j != nil {
		j.Status = statusActive
		j.Downloaded = downloaded
		j.Total = total
		j.LastUpdated = time.Now()
	}
}

func (m *Manager) Complete(id int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j := m.job(id); j != nil {
		j.Status = statusSuccess
		j.Message = message
		j.LastUpdated = time.Now()
	}
}

func (m *Manager) ReportError(id int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j := m.job(id); j != nil {
		j.Status = statusError
		j.Err = err
		j.Message = fmt.Sprintf("Failed %s", j.Name)
		j.LastUpdated = time.Now()
	}
}

// Counts returns the number of succeeded and failed jobs.
func (m *Manager) Counts() (succeeded, failed int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.jobs {
		switch j.Status {
		case statusSuccess:
			succeeded++
		case statusError:
			failed++
		}
	}
	return succeeded, failed
}

func (m *Manager) StartDisplay() {
	if !m.live {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.redraw()
			case <-m.doneCh:
				return
			}
		}
	}()
}

// StopDisplay stops the live view and prints the final listing and summary.
func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.wg.Wait()
	m.redraw()
	m.ShowSummary()
}

func statusIndicator(status string) string {
	switch status {
	case statusSuccess:
		return successStyle.Render(StyleSymbols["pass"])
	case statusError:
		return errorStyle.Render(StyleSymbols["fail"])
	case statusActive:
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return debugStyle.Render(StyleSymbols["bullet"])
	}
}

func (j *JobOutput) line() string {
	elapsed := j.LastUpdated.Sub(j.StartTime).Round(time.Second)
	indicator := statusIndicator(j.Status)
	switch j.Status {
	case statusSuccess:
		return fmt.Sprintf("  %s %s %s", indicator, debugStyle.Render(elapsed.String()), successStyle.Render(j.Message))
	case statusError:
		return fmt.Sprintf("  %s %s %s", indicator, debugStyle.Render(elapsed.String()), errorStyle.Render(j.Message))
	case statusPending:
		return fmt.Sprintf("  %s %s", indicator, pendingStyle.Render("Waiting "+j.Name))
	}
	progress := utils.FormatBytes(uint64(max(j.Downloaded, 0)))
	if j.Total > 0 {
		progress = fmt.Sprintf("%s / %s (%.1f%%)", progress, utils.FormatBytes(uint64(j.Total)), float64(j.Downloaded)*100/float64(j.Total))
	}
	speed := utils.FormatSpeed(j.Downloaded, time.Since(j.StartTime).Seconds())
	return fmt.Sprintf("  %s %s %s %s %s", indicator, pendingStyle.Render(j.Name), debugStyle.Render(progress), StyleSymbols["bullet"], debugStyle.Render(speed))
}

func (m *Manager) redraw() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live && m.numLines > 0 {
		fmt.Fprintf(m.w, "\033[%dA\033[J", m.numLines)
	}
	for _, j := range m.jobs {
		fmt.Fprintln(m.w, j.line())
	}
	m.numLines = len(m.jobs)
}

func (m *Manager) ShowSummary() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var succeeded, failed int
	var failures []*JobOutput
	for _, j := range m.jobs {
		switch j.Status {
		case statusSuccess:
			succeeded++
		case statusError:
			failed++
			failures = append(failures, j)
		}
	}
	fmt.Fprintln(m.w)
	fmt.Fprintln(m.w, "  "+summaryStyle.Render(fmt.Sprintf("Completed %d of %d", succeeded, len(m.jobs))))
	if failed == 0 {
		return
	}
	fmt.Fprintln(m.w, "  "+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failed, len(m.jobs))))
	fmt.Fprintln(m.w, "  "+errorStyle.Bold(true).Render("Errors:"))
	for i, j := range failures {
		fmt.Fprintf(m.w, "    %s %s\n", errorStyle.Render(fmt.Sprintf("%d.", i+1)), errorStyle.Render(j.Name))
		fmt.Fprintf(m.w, "      %s\n", errorStyle.Render(fmt.Sprintf("Error: %v", j.Err)))
	}
	fmt.Fprintln(m.w, strings.Repeat(" ", 2)+debugStyle.Render("Rerun the batch to resume partial downloads"))
}
