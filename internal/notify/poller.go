package notify

import (
	"context"
	"log"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/store"
)

// PollState represents the current state of the feed poller.
type PollState int

const (
	PollIdle PollState = iota
	PollRunning
	PollError
)

// PollStatus holds the poller's state.
type PollStatus struct {
	State    PollState
	LastPoll time.Time
	Error    error
}

// ResultMsg is a tea.Msg sent when a poll completes.
type ResultMsg struct {
	Added  int
	Unread int
	Error  error
}

// Fetcher returns the current notifications feed.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.Notification, error)
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// defaultInterval applies when no positive interval is configured.
const defaultInterval = 120 * time.Second

// Poller fetches the feed on an interval and stores new items.
type Poller struct {
	store     store.Store
	fetcher   Fetcher
	interval  time.Duration
	resultCh  chan ResultMsg
	triggerCh chan struct{}
	done      chan struct{} // closed by Stop
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	status    PollStatus
	running   bool
}

// NewPoller creates a poller that writes into s.
func NewPoller(s store.Store, f Fetcher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		store:     s,
		fetcher:   f,
		interval:  interval,
		resultCh:  make(chan ResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Start launches the polling goroutine, bound to ctx, and returns a
// tea.Cmd that waits for the first result.
func (p *Poller) Start(ctx context.Context) tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	if p.done == nil {
		p.done = make(chan struct{})
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx)

	return p.WaitForNextResult()
}

// Stop cancels the polling goroutine and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	close(p.done)
	p.done = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// Refresh triggers an immediate poll.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A poll is already queued.
	}
}

// Status returns the current poller status.
func (p *Poller) Status() PollStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	p.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		case <-p.triggerCh:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce performs a single fetch, stores the results and publishes a
// ResultMsg. It returns the message it published.
func (p *Poller) PollOnce(ctx context.Context) ResultMsg {
	prev := p.Status()
	p.setStatus(PollRunning, nil)

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	items, err := p.fetcher.Fetch(fetchCtx)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled, not failed: keep the last real outcome.
			p.restoreStatus(prev)
			return ResultMsg{Error: ctx.Err()}
		}
		log.Printf("notify: %v", err)
		p.setStatus(PollError, err)
		return p.sendResult(ResultMsg{Error: err})
	}

	added, err := p.store.UpsertNotifications(fetchCtx, items)
	if err != nil {
		log.Printf("notify: storing notifications: %v", err)
		p.setStatus(PollError, err)
		return p.sendResult(ResultMsg{Error: err})
	}
	if err := p.store.MarkSynced(fetchCtx, store.SyncNotifications, time.Now()); err != nil {
		log.Printf("notify: %v", err)
	}

	unread, err := p.store.CountUnreadNotifications(fetchCtx)
	if err != nil {
		log.Printf("notify: %v", err)
	}

	p.setStatus(PollIdle, nil)
	return p.sendResult(ResultMsg{Added: added, Unread: unread})
}

// setStatus updates the poller status.
func (p *Poller) setStatus(state PollState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == PollIdle && err == nil {
		p.status.LastPoll = time.Now()
	}
}

func (p *Poller) restoreStatus(st PollStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = st
}

// sendResult sends a ResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg ResultMsg) ResultMsg {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
	return msg
}

// WaitForNextResult returns a tea.Cmd that waits for the next poll result.
// Call it again after handling a ResultMsg to keep listening. The command
// returns nil once the poller is stopped.
func (p *Poller) WaitForNextResult() tea.Cmd {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	return func() tea.Msg {
		if done == nil {
			return nil
		}
		select {
		case result := <-p.resultCh:
			return result
		case <-done:
			return nil
		}
	}
}
