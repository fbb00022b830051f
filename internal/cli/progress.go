package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/matzehuels/framepen/pkg/pipeline"
)

const barWidth = 30

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// =============================================================================
// progressModel - bubbletea view of a running conversion
// =============================================================================

type progressMsg pipeline.Progress

type finishedMsg struct{ err error }

type progressModel struct {
	label     string
	start     time.Time
	last      pipeline.Progress
	finished  bool
	cancelled bool
}

func newProgressModel(label string) progressModel {
	return progressModel{label: label, start: time.Now()}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	case progressMsg:
		m.last = pipeline.Progress(msg)
	case finishedMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.finished || m.cancelled {
		return ""
	}
	p := m.last
	counts := StyleDim.Render(fmt.Sprintf("%s frames · %d pens · %d blocks",
		humanize.Comma(int64(p.FramesProcessed)), p.PenCount, p.Blocks))
	elapsed := StyleDim.Render(time.Since(m.start).Round(time.Second).String())
	if p.TotalFrames <= 0 {
		return fmt.Sprintf("%s %s  %s  %s\n", styleIconSpinner.Render(iconInfo), m.label, counts, elapsed)
	}
	return fmt.Sprintf("%s %s %s %s  %s  %s\n",
		styleIconSpinner.Render(iconInfo),
		m.label,
		progressBar(p.Fraction(), barWidth),
		StyleNumber.Render(fmt.Sprintf("%3.0f%%", p.Fraction()*100)),
		counts,
		elapsed)
}

// =============================================================================
// Progress Reporting
// =============================================================================

// progressFunc runs a conversion, reporting through onProgress.
type progressFunc func(onProgress func(pipeline.Progress)) error

// runWithProgress runs fn while showing its progress. On a terminal it draws
// a live bar and cancels the run when the user presses ctrl+c; elsewhere it
// logs a line every logEvery. extra receives every event as well.
func runWithProgress(ctx context.Context, cancel context.CancelFunc, label string, w io.Writer, logger *log.Logger, extra func(pipeline.Progress), fn progressFunc) error {
	if extra == nil {
		extra = func(pipeline.Progress) {}
	}
	if !isTerminal(w) {
		lp := &logProgress{logger: logger, every: logEvery}
		return fn(func(p pipeline.Progress) {
			lp.report(p)
			extra(p)
		})
	}

	prog := tea.NewProgram(newProgressModel(label), tea.WithOutput(w), tea.WithContext(ctx))
	errc := make(chan error, 1)
	go func() {
		err := fn(func(p pipeline.Progress) {
			extra(p)
			prog.Send(progressMsg(p))
		})
		errc <- err
		prog.Send(finishedMsg{err: err})
	}()

	final, runErr := prog.Run()
	if m, ok := final.(progressModel); ok && m.cancelled {
		cancel()
	}
	err := <-errc
	if err == nil && runErr != nil && ctx.Err() == nil {
		logger.Debug("progress view failed", "error", runErr)
	}
	return err
}

const logEvery = 2 * time.Second

// logProgress writes throttled progress lines for non-interactive output.
type logProgress struct {
	logger *log.Logger
	every  time.Duration
	last   time.Time
}

func (l *logProgress) report(p pipeline.Progress) {
	now := time.Now()
	if !p.Done && now.Sub(l.last) < l.every {
		return
	}
	l.last = now
	kv := []any{"frames", p.FramesProcessed, "pens", p.PenCount, "blocks", p.Blocks}
	if p.TotalFrames > 0 {
		kv = append(kv, "total", p.TotalFrames, "percent", fmt.Sprintf("%.0f", p.Fraction()*100))
	}
	l.logger.Info("progress", kv...)
}
