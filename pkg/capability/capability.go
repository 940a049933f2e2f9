// Package capability negotiates the optional host features the plugin can
// use. Negotiation happens once per enable; the result is a fixed set that
// listeners are gated on.
package capability

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Feature is an optional host event family.
type Feature int

const (
	// EditBook is the book editing event.
	EditBook Feature = iota

	// InteractAtEntity is the precise entity interaction event.
	InteractAtEntity

	// SwapHandItems is the off-hand swap event.
	SwapHandItems
)

var featureInfo = map[Feature]struct {
	name  string
	since string
}{
	EditBook:         {"edit_book", "v1.6"},
	InteractAtEntity: {"interact_at_entity", "v1.8"},
	SwapHandItems:    {"swap_hand_items", "v1.9"},
}

// All returns every known feature.
func All() []Feature {
	return []Feature{EditBook, InteractAtEntity, SwapHandItems}
}

func (f Feature) String() string {
	if info, ok := featureInfo[f]; ok {
		return info.name
	}
	return fmt.Sprintf("feature(%d)", int(f))
}

// ParseFeature maps a host feature name to a Feature.
func ParseFeature(name string) (Feature, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, info := range featureInfo {
		if info.name == name {
			return f, true
		}
	}
	return 0, false
}

// Set is the negotiated feature set.
type Set struct {
	features map[Feature]bool
}

// Has reports whether f is available.
func (s Set) Has(f Feature) bool {
	return s.features[f]
}

// List returns the available features in declaration order.
func (s Set) List() []Feature {
	var out []Feature
	for _, f := range All() {
		if s.features[f] {
			out = append(out, f)
		}
	}
	return out
}

// Names returns the available feature names.
func (s Set) Names() []string {
	var out []string
	for _, f := range s.List() {
		out = append(out, f.String())
	}
	return out
}

// Negotiate resolves the feature set.
//
// When the host reports features explicitly they are authoritative and the
// version is ignored; unknown names are skipped. Otherwise each feature is
// available when the host version is at least the version that introduced
// it. A version that cannot be parsed yields an empty set.
func Negotiate(version string, reported []string) Set {
	set := Set{features: make(map[Feature]bool)}

	if len(reported) > 0 {
		for _, name := range reported {
			if f, ok := ParseFeature(name); ok {
				set.features[f] = true
			}
		}
		return set
	}

	v := canonicalVersion(version)
	if v == "" {
		return set
	}
	for f, info := range featureInfo {
		if semver.Compare(v, info.since) >= 0 {
			set.features[f] = true
		}
	}
	return set
}

// canonicalVersion turns "1.12.2-R0.1-SNAPSHOT" into "v1.12.2". The
// qualifier is dropped because semver would order it before the release.
func canonicalVersion(version string) string {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	end := 0
	for end < len(version) && (version[end] == '.' || (version[end] >= '0' && version[end] <= '9')) {
		end++
	}
	v := "v" + strings.Trim(version[:end], ".")
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}
