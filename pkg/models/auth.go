package models

import (
	"strings"
	"time"
)

// PlayerAuth is the persistent session record of one player account.
//
// Username is the identity key: the lower-cased player name. RealName keeps
// the casing the player last joined with.
type PlayerAuth struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Username        string     `gorm:"uniqueIndex;not null;size:255" json:"username"`
	RealName        string     `gorm:"column:realname;not null;size:255" json:"realname"`
	Password        string     `gorm:"not null;size:255" json:"-"`
	IP              string     `gorm:"size:40" json:"ip,omitempty"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
	AuthenticatedAt *time.Time `json:"authenticated_at,omitempty"`
	RegisteredAt    time.Time  `gorm:"autoCreateTime" json:"registered_at"`
	Email           string     `gorm:"size:255" json:"email,omitempty"`
	IsLogged        bool       `gorm:"index;not null;default:false" json:"is_logged"`

	World string  `gorm:"size:255;default:world" json:"world"`
	X     float64 `gorm:"not null;default:0" json:"x"`
	Y     float64 `gorm:"not null;default:0" json:"y"`
	Z     float64 `gorm:"not null;default:0" json:"z"`
	Yaw   float32 `gorm:"not null;default:0" json:"yaw"`
	Pitch float32 `gorm:"not null;default:0" json:"pitch"`
}

// TableName returns the table name for PlayerAuth.
func (PlayerAuth) TableName() string {
	return "authme"
}

// NormalizeName returns the identity key for a player name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Location returns the last-known location stored in the record.
func (a *PlayerAuth) Location() Location {
	return Location{World: a.World, X: a.X, Y: a.Y, Z: a.Z, Yaw: a.Yaw, Pitch: a.Pitch}
}

// SetLocation copies loc into the record's location columns.
func (a *PlayerAuth) SetLocation(loc Location) {
	a.World = loc.World
	a.X, a.Y, a.Z = loc.X, loc.Y, loc.Z
	a.Yaw, a.Pitch = loc.Yaw, loc.Pitch
}

// HasEmail reports whether the player has registered a recovery address.
func (a *PlayerAuth) HasEmail() bool {
	return a.Email != "" && a.Email != "your@email.com"
}

// AllModels returns every model managed by AutoMigrate.
func AllModels() []any {
	return []any{&PlayerAuth{}}
}
