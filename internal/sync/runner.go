// Package sync runs mailbox operations off the UI goroutine and reports
// their progress and results as Bubble Tea messages.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nhle/inboxzero/internal/mailbox"
	"github.com/nhle/inboxzero/internal/model"
	"github.com/nhle/inboxzero/internal/sender"
)

var (
	// ErrBusy is returned when an operation is requested while another
	// one is still running.
	ErrBusy = errors.New("another mailbox operation is in progress")

	// ErrNotConnected is returned when labeling is requested without a
	// live session, e.g. after the previous apply logged out.
	ErrNotConnected = errors.New("session expired, fetch senders again")
)

// Stage names what a running operation is doing.
type Stage string

const (
	StageConnecting Stage = "connecting"
	StageScanning   Stage = "scanning"
	StageLabeling   Stage = "labeling"
)

// ProgressMsg is a tea.Msg reporting (Done, Total) for the running
// operation. Progress messages may be dropped when the UI lags.
type ProgressMsg struct {
	RunID string
	Stage Stage
	Done  int
	Total int
}

// ScanResultMsg is a tea.Msg sent when a scan completes.
type ScanResultMsg struct {
	RunID     string
	Table     model.FrequencyTable
	Error     error
	AuthError bool
	Elapsed   time.Duration
}

// LabelResultMsg is a tea.Msg sent when a label-apply run completes.
type LabelResultMsg struct {
	RunID    string
	Label    string
	Outcomes []model.LabelingOutcome
	Error    error
	Elapsed  time.Duration
}

// Opener opens an authenticated mailbox session.
type Opener interface {
	Open(ctx context.Context) (mailbox.Session, error)
}

// Runner owns the live mailbox session and allows at most one
// operation on it at a time.
type Runner struct {
	opener  Opener
	sweeper *sender.Sweeper
	logger  *log.Logger

	resultCh  chan tea.Msg
	closing   chan struct{}
	closeOnce gosync.Once

	mu      gosync.Mutex
	session mailbox.Session
	busy    bool
	cancel  context.CancelFunc
	wg      gosync.WaitGroup
}

// New creates a Runner. No connection is made until the first scan.
func New(opener Opener, sweeper *sender.Sweeper, logger *log.Logger) *Runner {
	return &Runner{
		opener:   opener,
		sweeper:  sweeper,
		logger:   logger,
		resultCh: make(chan tea.Msg, 64),
		closing:  make(chan struct{}),
	}
}

// Busy reports whether an operation is running.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// Connected reports whether a live session is held.
func (r *Runner) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// Scan starts a scan in the background, connecting first when needed.
// It returns the run id, or ErrBusy.
func (r *Runner) Scan(opts sender.ScanOptions) (string, error) {
	ctx, runID, err := r.begin()
	if err != nil {
		return "", err
	}

	go func() {
		result := r.scan(ctx, runID, opts)
		r.finish()
		r.sendResult(result)
	}()

	return runID, nil
}

func (r *Runner) scan(ctx context.Context, runID string, opts sender.ScanOptions) ScanResultMsg {
	start := time.Now()
	logger := r.logger.With("run", runID)

	session, err := r.ensureSession(ctx, runID)
	if err != nil {
		logger.Error("connect failed", "err", err)
		return ScanResultMsg{RunID: runID, Error: err, AuthError: mailbox.IsAuthError(err)}
	}

	userProgress := opts.Progress
	opts.Progress = func(done, total int) {
		r.sendProgress(ProgressMsg{RunID: runID, Stage: StageScanning, Done: done, Total: total})
		if userProgress != nil {
			userProgress(done, total)
		}
	}

	table, err := r.sweeper.TopSenders(ctx, session, opts)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("scan failed", "err", err)
		// A failed transport stage may leave the connection unusable;
		// the next scan reconnects.
		if mailbox.OpOf(err) != "" {
			r.dropSession(context.Background())
		}
		return ScanResultMsg{RunID: runID, Error: err, AuthError: mailbox.IsAuthError(err), Elapsed: elapsed}
	}

	logger.Info("scan complete",
		"scanned", table.Scanned,
		"skipped", table.Skipped,
		"senders", table.Len(),
		"elapsed", elapsed.Round(time.Millisecond),
	)
	return ScanResultMsg{RunID: runID, Table: table, Elapsed: elapsed}
}

// Apply starts labeling the messages of senders in the background. It
// needs the session left by a previous scan and logs out when done, so
// the next scan reconnects. It returns the run id, ErrBusy or
// ErrNotConnected.
func (r *Runner) Apply(senders []string, opts sender.LabelOptions) (string, error) {
	if !r.Connected() {
		return "", ErrNotConnected
	}

	ctx, runID, err := r.begin()
	if err != nil {
		return "", err
	}

	go func() {
		result := r.apply(ctx, runID, senders, opts)
		r.finish()
		r.sendResult(result)
	}()

	return runID, nil
}

func (r *Runner) apply(ctx context.Context, runID string, senders []string, opts sender.LabelOptions) LabelResultMsg {
	start := time.Now()
	logger := r.logger.With("run", runID)

	r.mu.Lock()
	session := r.session
	r.mu.Unlock()
	if session == nil {
		return LabelResultMsg{RunID: runID, Label: opts.Label, Error: ErrNotConnected}
	}

	userProgress := opts.Progress
	opts.Progress = func(done, total int) {
		r.sendProgress(ProgressMsg{RunID: runID, Stage: StageLabeling, Done: done, Total: total})
		if userProgress != nil {
			userProgress(done, total)
		}
	}

	logger.Info("applying label", "label", opts.Label, "senders", len(senders))
	outcomes, err := r.sweeper.ApplyLabel(ctx, session, senders, opts)

	r.dropSession(context.Background())

	elapsed := time.Since(start)
	if err != nil {
		logger.Error("label apply failed", "err", err)
	} else {
		logger.Info("label apply complete", "senders", len(outcomes), "elapsed", elapsed.Round(time.Millisecond))
	}
	return LabelResultMsg{RunID: runID, Label: opts.Label, Outcomes: outcomes, Error: err, Elapsed: elapsed}
}

// Cancel asks the running operation to stop at its next checkpoint.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Close cancels any running operation, waits for it, and logs out.
func (r *Runner) Close() error {
	r.closeOnce.Do(func() { close(r.closing) })
	r.Cancel()
	r.wg.Wait()

	r.mu.Lock()
	session := r.session
	r.session = nil
	r.mu.Unlock()

	if session == nil {
		return nil
	}
	if err := session.Logout(context.Background()); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}

// begin claims the runner for one operation.
func (r *Runner) begin() (context.Context, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.closing:
		return nil, "", errors.New("runner is closed")
	default:
	}
	if r.busy {
		return nil, "", ErrBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.busy = true
	r.cancel = cancel
	r.wg.Add(1)
	return ctx, uuid.NewString(), nil
}

// finish releases the runner before the result is delivered, so the UI
// can start the next operation as soon as it sees the result.
func (r *Runner) finish() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.busy = false
	r.mu.Unlock()
	r.wg.Done()
}

func (r *Runner) ensureSession(ctx context.Context, runID string) (mailbox.Session, error) {
	r.mu.Lock()
	session := r.session
	r.mu.Unlock()
	if session != nil {
		return session, nil
	}

	r.sendProgress(ProgressMsg{RunID: runID, Stage: StageConnecting})
	session, err := r.opener.Open(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.session = session
	r.mu.Unlock()
	return session, nil
}

// dropSession logs out and forgets the current session.
func (r *Runner) dropSession(ctx context.Context) {
	r.mu.Lock()
	session := r.session
	r.session = nil
	r.mu.Unlock()

	if session == nil {
		return
	}
	if err := session.Logout(ctx); err != nil {
		r.logger.Warn("logout failed", "err", err)
	}
}

// sendProgress sends a ProgressMsg without blocking.
func (r *Runner) sendProgress(msg ProgressMsg) {
	select {
	case r.resultCh <- msg:
	default:
		// Drop if the UI is behind; the next update supersedes it.
	}
}

// sendResult delivers a final result. Results are only dropped once the
// runner is closing.
func (r *Runner) sendResult(msg tea.Msg) {
	select {
	case r.resultCh <- msg:
	case <-r.closing:
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next progress
// update or result. Call it again after handling each message to keep
// listening. The command yields nil once the runner is closed.
func (r *Runner) WaitForNextResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-r.resultCh:
			return msg
		case <-r.closing:
			return nil
		}
	}
}
