// Package host defines the boundary between the plugin and the environment
// that embeds it: connected entities, the task scheduler and event dispatch.
//
// The plugin never reaches past these interfaces. The standalone
// subpackage provides an in-process implementation; hosttest provides fakes.
package host

import (
	"context"
	"time"

	"github.com/marmos91/authkeep/pkg/models"
)

// EntityState is the snapshot of a player's mutable state that is captured
// while the player is unauthenticated and restored afterwards.
type EntityState struct {
	Location    models.Location `json:"location"`
	Operator    bool            `json:"operator"`
	AllowFlight bool            `json:"allow_flight"`
	Flying      bool            `json:"flying"`
	WalkSpeed   float32         `json:"walk_speed"`
	FlySpeed    float32         `json:"fly_speed"`
}

// Entity is a connected player.
type Entity interface {
	// Name returns the player name as typed by the player.
	Name() string
	IP() string

	State() EntityState
	ApplyState(EntityState)
	Teleport(models.Location)

	// HasMetadata reports whether another plugin tagged the entity with key.
	HasMetadata(key string) bool

	SendMessage(lines ...string)
	Kick(reason string)
}

// Worker is a task currently executing on a scheduler worker.
type Worker struct {
	TaskID int
	Owner  string
}

// TaskFunc is the body of a scheduled task.
type TaskFunc func(ctx context.Context)

// Scheduler runs asynchronous and periodic tasks on behalf of plugins.
type Scheduler interface {
	// ActiveWorkers returns the tasks executing right now, for every owner.
	ActiveWorkers() []Worker

	// IsQueued reports whether id is a periodic task that will run again.
	IsQueued(taskID int) bool

	// IsCurrentlyRunning reports whether id is executing right now.
	IsCurrentlyRunning(taskID int) bool

	// RunAsync runs fn once on a worker.
	RunAsync(owner string, fn TaskFunc) (int, error)

	// RunTimerAsync runs fn after delay and then every period.
	RunTimerAsync(owner string, delay, period time.Duration, fn TaskFunc) (int, error)

	// CancelTasks stops every pending and periodic task of owner. Tasks
	// already executing are not interrupted.
	CancelTasks(owner string)
}

// Host is the environment the plugin runs in.
type Host interface {
	Name() string

	// Version is the host version string, e.g. "1.12.2".
	Version() string

	// Features lists capabilities reported by the host. May be empty, in
	// which case capabilities are derived from Version.
	Features() []string

	// OnlineEntities returns the currently connected entities.
	OnlineEntities() []Entity

	// Entity finds a connected entity by name, case-insensitively.
	Entity(name string) (Entity, bool)

	Scheduler() Scheduler

	RegisterListener(owner string, l Listener)
	UnregisterListeners(owner string)

	// Shutdown asks the whole host to stop.
	Shutdown()
}
