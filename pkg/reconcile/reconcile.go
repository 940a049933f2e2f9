// Package reconcile keeps session state consistent across an enable/disable
// cycle.
//
// Startup runs once per enable, before listeners are registered, and
// brings the stored logged-in flags in line with who is connected. A
// Reconciler runs once per disable and settles every connected entity so
// none is left half-authenticated.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/limbo"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/marmos91/authkeep/pkg/session"
)

// QuitLocationStore persists the location columns of a session record.
type QuitLocationStore interface {
	UpdateQuitLocation(ctx context.Context, auth *models.PlayerAuth) error
}

// SnapshotStore persists the state of entities moved to spawn.
type SnapshotStore interface {
	HasData(name string) (bool, error)
	SaveData(e host.Entity) error
}

// Exemptions decides which entities are not subject to authentication.
type Exemptions interface {
	IsExempt(e host.Entity) bool
}

// Locator supplies the fallback location when an entity has none.
type Locator interface {
	LocationOrSpawn(loc models.Location) models.Location
}

// Options are the restriction switches that drive reconciliation.
type Options struct {
	SaveQuitLocation        bool
	TeleportUnauthedToSpawn bool
	NoTeleport              bool
}

// Action is what reconciliation did to one entity besides eviction.
type Action string

const (
	ActionSkipped      Action = "skipped"
	ActionRestored     Action = "restored"
	ActionQuitLocation Action = "quit_location"
	ActionNone         Action = "none"
)

// Outcome describes how one entity was reconciled.
type Outcome struct {
	Identity string
	Action   Action

	// SnapshotSaved is set when a backup snapshot was written.
	SnapshotSaved bool

	// Evicted is always true once the entity was processed.
	Evicted bool

	// Errs holds the failures of individual steps. Failed steps do not stop
	// the remaining ones.
	Errs []error
}

// Report summarizes a disable reconciliation.
type Report struct {
	Outcomes []Outcome
}

// Count returns how many entities got action.
func (r *Report) Count(action Action) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == action {
			n++
		}
	}
	return n
}

// Snapshots returns how many backup snapshots were written.
func (r *Report) Snapshots() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.SnapshotSaved {
			n++
		}
	}
	return n
}

// Failed returns the outcomes with at least one failed step.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if len(o.Errs) > 0 {
			out = append(out, o)
		}
	}
	return out
}

// Reconciler settles connected entities at disable time.
type Reconciler struct {
	opts       Options
	store      QuitLocationStore
	snapshots  SnapshotStore
	limbo      *limbo.Cache
	sessions   *session.Cache
	exemptions Exemptions
	locator    Locator
}

// Deps groups the collaborators of a Reconciler. Snapshots may be nil, in
// which case no backup snapshot is written.
type Deps struct {
	Store      QuitLocationStore
	Snapshots  SnapshotStore
	Limbo      *limbo.Cache
	Sessions   *session.Cache
	Exemptions Exemptions
	Locator    Locator
}

// New creates a Reconciler.
func New(opts Options, deps Deps) *Reconciler {
	return &Reconciler{
		opts:       opts,
		store:      deps.Store,
		snapshots:  deps.Snapshots,
		limbo:      deps.Limbo,
		sessions:   deps.Sessions,
		exemptions: deps.Exemptions,
		locator:    deps.Locator,
	}
}

// Reconcile settles every entity. A failure for one entity never prevents
// the others from being processed.
func (r *Reconciler) Reconcile(ctx context.Context, entities []host.Entity) *Report {
	report := &Report{Outcomes: make([]Outcome, 0, len(entities))}
	for _, e := range entities {
		report.Outcomes = append(report.Outcomes, r.ReconcileEntity(ctx, e))
	}
	return report
}

// ReconcileEntity settles one entity:
//
//  1. exempt entities (NPCs, unrestricted names) keep their state;
//  2. a limbo record is restored and deleted;
//  3. otherwise the quit location and the backup snapshot are persisted
//     as configured;
//  4. the identity is evicted from the session cache in every case.
func (r *Reconciler) ReconcileEntity(ctx context.Context, e host.Entity) Outcome {
	name := models.NormalizeName(e.Name())
	out := Outcome{Identity: name, Action: ActionNone}

	switch {
	case r.exemptions != nil && r.exemptions.IsExempt(e):
		out.Action = ActionSkipped

	case r.limbo != nil && r.limbo.Restore(e):
		r.limbo.Remove(name)
		out.Action = ActionRestored

	default:
		if r.opts.SaveQuitLocation {
			out.Action = ActionQuitLocation
			if err := r.saveQuitLocation(ctx, e); err != nil {
				out.Errs = append(out.Errs, err)
			}
		}
		if r.opts.TeleportUnauthedToSpawn && !r.opts.NoTeleport && r.snapshots != nil {
			saved, err := r.saveSnapshot(e)
			if err != nil {
				out.Errs = append(out.Errs, err)
			}
			out.SnapshotSaved = saved
		}
	}

	if r.sessions != nil {
		r.sessions.Remove(name)
	}
	out.Evicted = true

	for _, err := range out.Errs {
		logger.WarnCtx(ctx, "Failed to reconcile entity",
			logger.KeyIdentity, name, logger.Err(err))
	}
	return out
}

func (r *Reconciler) saveQuitLocation(ctx context.Context, e host.Entity) error {
	loc := e.State().Location
	if r.locator != nil {
		loc = r.locator.LocationOrSpawn(loc)
	}
	auth := &models.PlayerAuth{
		Username: models.NormalizeName(e.Name()),
		RealName: e.Name(),
	}
	auth.SetLocation(loc)

	// Unregistered players have no row to update.
	if err := r.store.UpdateQuitLocation(ctx, auth); err != nil && !errors.Is(err, models.ErrAuthNotFound) {
		return fmt.Errorf("failed to save quit location: %w", err)
	}
	return nil
}

func (r *Reconciler) saveSnapshot(e host.Entity) (bool, error) {
	has, err := r.snapshots.HasData(e.Name())
	if err != nil {
		return false, fmt.Errorf("failed to check player data: %w", err)
	}
	if has {
		return false, nil
	}
	if err := r.snapshots.SaveData(e); err != nil {
		return false, err
	}
	return true, nil
}
