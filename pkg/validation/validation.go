// Package validation decides which connected entities are subject to
// authentication at all.
package validation

import (
	"strings"

	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/models"
)

// NPCMetadataKey is the metadata tag other plugins put on bot entities.
const NPCMetadataKey = "NPC"

// NPCHook reports whether an entity is driven by another plugin. Hooks are
// consulted in addition to the metadata tag.
type NPCHook func(host.Entity) bool

// Service answers exemption questions.
type Service struct {
	unrestricted map[string]struct{}
	hooks        []NPCHook
}

// New creates a service exempting the given names, compared case-insensitively.
func New(unrestricted []string, hooks ...NPCHook) *Service {
	s := &Service{
		unrestricted: make(map[string]struct{}, len(unrestricted)),
		hooks:        hooks,
	}
	for _, n := range unrestricted {
		if n = models.NormalizeName(n); n != "" {
			s.unrestricted[n] = struct{}{}
		}
	}
	return s
}

// IsUnrestricted reports whether name is configured as exempt.
func (s *Service) IsUnrestricted(name string) bool {
	_, ok := s.unrestricted[models.NormalizeName(name)]
	return ok
}

// IsNPC reports whether e is not controlled by a player.
func (s *Service) IsNPC(e host.Entity) bool {
	if e.HasMetadata(NPCMetadataKey) {
		return true
	}
	for _, hook := range s.hooks {
		if hook(e) {
			return true
		}
	}
	return false
}

// IsExempt reports whether e is skipped by authentication and reconciliation.
func (s *Service) IsExempt(e host.Entity) bool {
	return s.IsNPC(e) || s.IsUnrestricted(e.Name())
}

// IsAllowedCommand reports whether an unauthenticated player may run line.
// Only the command word is compared.
func IsAllowedCommand(line string, allowed []string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(fields[0], a) {
			return true
		}
	}
	return false
}
