// Package messages loads the player-facing message catalogue.
//
// Catalogues are YAML files named messages_<language>.yml in the messages
// directory under the data directory. A missing file is created from the
// bundled default for the language (or English). Keys missing from the
// file fall back to the bundled English catalogue.
package messages

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/host"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yml
var defaultFS embed.FS

const (
	newlineTag       = "%nl%"
	colorChar        = '§'
	fallbackLanguage = "en"
)

// Messages is a reloadable message catalogue.
type Messages struct {
	dir      string
	language string

	mu       sync.RWMutex
	file     string
	messages map[string]string
	defaults map[string]string
}

// New loads the catalogue for language from dataDir/messages.
func New(dataDir, language string) (*Messages, error) {
	defaults, err := loadEmbedded(fallbackLanguage)
	if err != nil {
		return nil, err
	}
	m := &Messages{
		dir:      filepath.Join(dataDir, "messages"),
		language: language,
		defaults: defaults,
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// File returns the path of the loaded catalogue.
func (m *Messages) File() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.file
}

// Reload re-reads the catalogue from disk.
func (m *Messages) Reload() error {
	file, err := m.ensureFile()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read messages file: %w", err)
	}
	parsed := map[string]string{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse messages file %s: %w", file, err)
	}

	m.mu.Lock()
	m.file = file
	m.messages = parsed
	m.mu.Unlock()

	logger.Debug("Messages loaded", logger.KeyPath, file, logger.KeyCount, len(parsed))
	return nil
}

// ensureFile returns the catalogue path, copying the bundled default there
// if the file does not exist yet.
func (m *Messages) ensureFile() (string, error) {
	file := filepath.Join(m.dir, "messages_"+m.language+".yml")
	if _, err := os.Stat(file); err == nil {
		return file, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to stat messages file: %w", err)
	}

	data, err := fs.ReadFile(defaultFS, "defaults/messages_"+m.language+".yml")
	if err != nil {
		data, err = fs.ReadFile(defaultFS, "defaults/messages_"+fallbackLanguage+".yml")
		if err != nil {
			return "", fmt.Errorf("failed to read bundled messages: %w", err)
		}
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create messages directory: %w", err)
	}
	if err := os.WriteFile(file, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write messages file: %w", err)
	}
	return file, nil
}

func loadEmbedded(language string) (map[string]string, error) {
	data, err := fs.ReadFile(defaultFS, "defaults/messages_"+language+".yml")
	if err != nil {
		return nil, fmt.Errorf("failed to read bundled messages: %w", err)
	}
	out := map[string]string{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse bundled messages: %w", err)
	}
	return out, nil
}

func (m *Messages) raw(key Key) string {
	m.mu.RLock()
	msg, ok := m.messages[key.code]
	file := m.file
	m.mu.RUnlock()
	if ok {
		return msg
	}

	logger.Warn("Message key missing, using default",
		logger.KeyKey, key.code, logger.KeyPath, file)
	if msg, ok := m.defaults[key.code]; ok {
		return msg
	}
	return "Error retrieving message '" + key.code + "'"
}

// Retrieve returns the formatted message split into lines. An empty
// message yields no lines.
func (m *Messages) Retrieve(key Key) []string {
	msg := format(m.raw(key))
	if msg == "" {
		return nil
	}
	return strings.Split(msg, "\n")
}

// RetrieveSingle returns the formatted message with its tags replaced by
// replacements, in the order of key.Tags(). A replacement count that does
// not match the tag count leaves the tags in place.
func (m *Messages) RetrieveSingle(key Key, replacements ...string) string {
	msg := format(m.raw(key))
	if len(replacements) != len(key.tags) {
		logger.Warn("Invalid number of replacements for message",
			logger.KeyKey, key.code, logger.KeyCount, len(replacements))
		return msg
	}
	for i, tag := range key.tags {
		msg = strings.ReplaceAll(msg, tag, replacements[i])
	}
	return msg
}

// Send delivers the message to e.
func (m *Messages) Send(e host.Entity, key Key, replacements ...string) {
	if len(replacements) == 0 && len(key.tags) == 0 {
		if lines := m.Retrieve(key); len(lines) > 0 {
			e.SendMessage(lines...)
		}
		return
	}
	e.SendMessage(strings.Split(m.RetrieveSingle(key, replacements...), "\n")...)
}

// format translates &-colour codes and the newline tag.
func format(msg string) string {
	msg = translateColorCodes(msg)
	return strings.ReplaceAll(msg, newlineTag, "\n")
}

func translateColorCodes(msg string) string {
	if !strings.ContainsRune(msg, '&') {
		return msg
	}
	r := []rune(msg)
	for i := 0; i < len(r)-1; i++ {
		if r[i] == '&' && strings.ContainsRune("0123456789AaBbCcDdEeFfKkLlMmNnOoRr", r[i+1]) {
			r[i] = colorChar
			if r[i+1] >= 'A' && r[i+1] <= 'Z' {
				r[i+1] += 'a' - 'A'
			}
		}
	}
	return string(r)
}

// StripColors removes colour codes from a formatted message.
func StripColors(msg string) string {
	var b strings.Builder
	r := []rune(msg)
	for i := 0; i < len(r); i++ {
		if r[i] == colorChar && i+1 < len(r) {
			i++
			continue
		}
		b.WriteRune(r[i])
	}
	return b.String()
}
