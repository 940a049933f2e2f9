// Package spawn resolves where players are sent when the plugin moves them.
package spawn

import (
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/models"
)

// Loader returns the configured spawn location.
type Loader struct {
	spawn models.Location
}

// New creates a loader from the restrictions.spawn section.
func New(cfg config.LocationConfig) *Loader {
	return &Loader{spawn: models.Location{
		World: cfg.World,
		X:     cfg.X,
		Y:     cfg.Y,
		Z:     cfg.Z,
		Yaw:   cfg.Yaw,
		Pitch: cfg.Pitch,
	}}
}

// Spawn returns the spawn location.
func (l *Loader) Spawn() models.Location {
	return l.spawn
}

// LocationOrSpawn returns loc, or the spawn location when loc is unset.
func (l *Loader) LocationOrSpawn(loc models.Location) models.Location {
	if loc.IsZero() {
		return l.spawn
	}
	return loc
}
