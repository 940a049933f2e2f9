// Package hosttest provides scriptable host fakes for tests.
package hosttest

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/host/standalone"
	"github.com/marmos91/authkeep/pkg/models"
)

// NewEntity returns a connected entity standing at loc.
func NewEntity(name, ip string, loc models.Location) *standalone.Player {
	return standalone.NewPlayer(name, ip, loc)
}

// Scheduler is a host.Scheduler whose worker table is set by the test.
//
// A worker added with Running reports IsCurrentlyRunning for the given
// number of checks and then finishes. A negative count never finishes.
type Scheduler struct {
	mu        sync.Mutex
	nextID    int
	workers   []host.Worker
	remaining map[int]int
	queued    map[int]bool
	timers    map[int]string
	cancelled []string
	checks    int
}

// NewScheduler creates an empty fake scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		nextID:    1000,
		remaining: map[int]int{},
		queued:    map[int]bool{},
		timers:    map[int]string{},
	}
}

// Running adds an executing worker that finishes after checks calls to
// IsCurrentlyRunning.
func (s *Scheduler) Running(id int, owner string, checks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, host.Worker{TaskID: id, Owner: owner})
	s.remaining[id] = checks
}

// Queued adds an executing worker that belongs to a periodic task.
func (s *Scheduler) Queued(id int, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, host.Worker{TaskID: id, Owner: owner})
	s.remaining[id] = -1
	s.queued[id] = true
}

func (s *Scheduler) ActiveWorkers() []host.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]host.Worker(nil), s.workers...)
}

func (s *Scheduler) IsQueued(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued[id]
}

func (s *Scheduler) IsCurrentlyRunning(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks++
	n, ok := s.remaining[id]
	if !ok {
		return false
	}
	if n < 0 {
		return true
	}
	if n == 0 {
		return false
	}
	s.remaining[id] = n - 1
	return true
}

// Checks returns how many IsCurrentlyRunning calls were made.
func (s *Scheduler) Checks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks
}

// RunAsync runs fn synchronously.
func (s *Scheduler) RunAsync(owner string, fn host.TaskFunc) (int, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()
	fn(context.Background())
	return id, nil
}

// RunTimerAsync records the timer without running it.
func (s *Scheduler) RunTimerAsync(owner string, delay, period time.Duration, fn host.TaskFunc) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.timers[s.nextID] = owner
	s.queued[s.nextID] = true
	return s.nextID, nil
}

// Timers returns the number of periodic tasks still scheduled for owner.
func (s *Scheduler) Timers(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, o := range s.timers {
		if o == owner && s.queued[id] {
			n++
		}
	}
	return n
}

func (s *Scheduler) CancelTasks(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, owner)
	for id, o := range s.timers {
		if o == owner {
			delete(s.queued, id)
		}
	}
}

// Cancelled returns the owners passed to CancelTasks.
func (s *Scheduler) Cancelled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cancelled...)
}

// Host is a host.Host with a fixed roster.
type Host struct {
	HostName     string
	HostVersion  string
	HostFeatures []string

	Sched *Scheduler

	mu        sync.Mutex
	entities  []host.Entity
	listeners map[string][]host.Listener
	shutdowns int
	done      chan struct{}
}

// NewHost creates a fake host running version with the given entities.
func NewHost(version string, entities ...host.Entity) *Host {
	return &Host{
		HostName:    "test",
		HostVersion: version,
		Sched:       NewScheduler(),
		entities:    entities,
		listeners:   map[string][]host.Listener{},
		done:        make(chan struct{}),
	}
}

func (h *Host) Name() string { return h.HostName }

func (h *Host) Version() string { return h.HostVersion }

func (h *Host) Features() []string { return h.HostFeatures }

func (h *Host) Scheduler() host.Scheduler { return h.Sched }

func (h *Host) OnlineEntities() []host.Entity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]host.Entity(nil), h.entities...)
}

func (h *Host) Entity(name string) (host.Entity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.entities {
		if models.NormalizeName(e.Name()) == models.NormalizeName(name) {
			return e, true
		}
	}
	return nil, false
}

// SetEntities replaces the roster.
func (h *Host) SetEntities(entities ...host.Entity) {
	h.mu.Lock()
	h.entities = entities
	h.mu.Unlock()
}

func (h *Host) RegisterListener(owner string, l host.Listener) {
	h.mu.Lock()
	h.listeners[owner] = append(h.listeners[owner], l)
	h.mu.Unlock()
}

func (h *Host) UnregisterListeners(owner string) {
	h.mu.Lock()
	delete(h.listeners, owner)
	h.mu.Unlock()
}

// Listeners returns the names of listeners registered by owner.
func (h *Host) Listeners(owner string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var names []string
	for _, l := range h.listeners[owner] {
		names = append(names, l.Name())
	}
	return names
}

// Dispatch delivers ev to every listener of owner subscribed to its type.
func (h *Host) Dispatch(ctx context.Context, owner string, ev *host.Event) {
	h.mu.Lock()
	ls := append([]host.Listener(nil), h.listeners[owner]...)
	h.mu.Unlock()
	for _, l := range ls {
		if host.Handles(l, ev.Type) {
			l.Handle(ctx, ev)
		}
	}
}

func (h *Host) Shutdown() {
	h.mu.Lock()
	h.shutdowns++
	if h.shutdowns == 1 {
		close(h.done)
	}
	h.mu.Unlock()
}

// Done is closed by the first Shutdown.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// Shutdowns returns how many times Shutdown was called.
func (h *Host) Shutdowns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shutdowns
}

var (
	_ host.Host      = (*Host)(nil)
	_ host.Scheduler = (*Scheduler)(nil)
)
