package models

import "fmt"

// Location is a position in a named world.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// IsZero reports whether l has no world set.
func (l Location) IsZero() bool {
	return l.World == ""
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%.1f, %.1f, %.1f)", l.World, l.X, l.Y, l.Z)
}
