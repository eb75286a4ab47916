package presenter

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/scheduler"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)

	bannerTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	bannerBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

// PromptFunc asks the user how to respond to an alarm.
type PromptFunc func(ctx context.Context, alarm scheduler.Alarm) (scheduler.Response, error)

type terminalJob struct {
	ctx     context.Context
	alarm   scheduler.Alarm
	respond func(scheduler.Response)
}

// Terminal prompts on the controlling terminal. Alarms are queued and
// prompted one at a time. The queue is unbounded so PresentAlarm never blocks
// the event loop.
type Terminal struct {
	out    io.Writer
	prompt PromptFunc
	start  sync.Once

	mu    sync.Mutex
	queue []terminalJob
	wake  chan struct{}
}

func NewTerminal(out io.Writer) *Terminal {
	if out == nil {
		out = os.Stdout
	}
	return &Terminal{out: out, prompt: huhPrompt, wake: make(chan struct{}, 1)}
}

// WithPrompt replaces the interactive huh form.
func (t *Terminal) WithPrompt(p PromptFunc) *Terminal {
	t.prompt = p
	return t
}

func (t *Terminal) PresentAlarm(ctx context.Context, alarm scheduler.Alarm, respond func(scheduler.Response)) {
	t.start.Do(func() { go t.work() })
	t.mu.Lock()
	t.queue = append(t.queue, terminalJob{ctx: ctx, alarm: alarm, respond: respond})
	t.mu.Unlock()
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Terminal) next() (terminalJob, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return terminalJob{}, false
	}
	job := t.queue[0]
	t.queue[0] = terminalJob{}
	t.queue = t.queue[1:]
	return job, true
}

func (t *Terminal) work() {
	for {
		job, ok := t.next()
		if !ok {
			<-t.wake
			continue
		}
		t.handle(job)
	}
}

func (t *Terminal) handle(job terminalJob) {
	// Shutting down: the handled flag is not persisted, so the alarm fires
	// again on the next start.
	if job.ctx.Err() != nil {
		return
	}
	fmt.Fprintln(t.out, Banner(job.alarm))
	resp, err := t.prompt(job.ctx, job.alarm)
	if err != nil {
		if job.ctx.Err() != nil {
			return
		}
		logger.Warn("Alarm prompt failed; dismissing", "reminder", job.alarm.Reminder.ID, "error", err)
		fmt.Fprintf(t.out, "Could not read a response (%v); alarm dismissed.\n", err)
		job.respond(scheduler.Response{Kind: scheduler.Dismiss})
		return
	}
	job.respond(resp)
}

// Banner renders the boxed alarm heading.
func Banner(a scheduler.Alarm) string {
	return bannerStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		bannerTitleStyle.Render("⏰ "+a.Title()),
		bannerBodyStyle.Render(Describe(a)),
	))
}

func huhPrompt(ctx context.Context, alarm scheduler.Alarm) (scheduler.Response, error) {
	opts := make([]huh.Option[scheduler.ResponseKind], 0, len(alarm.Options()))
	for _, k := range alarm.Options() {
		opts = append(opts, huh.NewOption(OptionLabel(k), k))
	}

	var (
		kind   scheduler.ResponseKind
		record = true
		note   string
	)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[scheduler.ResponseKind]().
				Title("What now?").
				Options(opts...).
				Value(&kind),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Add to the activity log?").
				Value(&record),
			huh.NewInput().
				Title("Note (optional)").
				Value(&note),
		).WithHideFunc(func() bool {
			return kind != scheduler.Acknowledge && kind != scheduler.Skip
		}),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return scheduler.Response{}, fmt.Errorf("alarm prompt: %w", err)
	}

	resp := scheduler.Response{Kind: kind}
	if record {
		resp.Log = logFor(alarm, kind, note)
	}
	return resp, nil
}
