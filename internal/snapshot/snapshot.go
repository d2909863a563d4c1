// Package snapshot captures pre-edit file content per run so edits can be
// reviewed or reverted, grounded in the teacher's internal/delta package
// (capture-before-write, dedup per path) but adapted from SQLite-backed
// per-turn deltas to a JSON-metadata directory captured once per run
// (spec.md §4.9).
package snapshot

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	labelMaxChars  = 50
	maxPerProject  = 10
	snapshotsDir   = ".agent/snapshots"
)

// Action is the kind of file mutation recorded against a path.
type Action string

const (
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Change is one entry in a snapshot's change log.
type Change struct {
	Path   string `json:"path"`
	Action Action `json:"action"`
}

// Metadata is the on-disk index for one snapshot directory.
type Metadata struct {
	ID        string   `json:"id"`
	UnixMS    int64    `json:"timestamp"`
	Label     string   `json:"label"`
	Changes   []Change `json:"changes"`
}

// Manager owns one run's snapshot directory. Zero value is not usable;
// construct with New.
type Manager struct {
	projectRoot string
	dir         string
	meta        Metadata
	savedPaths  map[string]bool
}

// New creates `<project_root>/.agent/snapshots/<8-char-id>/`, derives a
// label from firstUserMessage, writes the initial metadata.json, and
// prunes older snapshots past maxPerProject. Only called in code mode.
func New(projectRoot, firstUserMessage string, nowUnixMS int64) (*Manager, error) {
	id := newID()
	dir := filepath.Join(projectRoot, snapshotsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	m := &Manager{
		projectRoot: projectRoot,
		dir:         dir,
		savedPaths:  make(map[string]bool),
		meta: Metadata{
			ID:      id,
			UnixMS:  nowUnixMS,
			Label:   label(firstUserMessage),
			Changes: []Change{},
		},
	}
	if err := m.writeMetadata(); err != nil {
		return nil, err
	}

	pruneOld(filepath.Join(projectRoot, snapshotsDir), id)
	return m, nil
}

// ID returns the snapshot's identifier.
func (m *Manager) ID() string { return m.meta.ID }

// Label returns the derived label.
func (m *Manager) Label() string { return m.meta.Label }

// Changes returns a copy of the recorded change list.
func (m *Manager) Changes() []Change {
	out := make([]Change, len(m.meta.Changes))
	copy(out, m.meta.Changes)
	return out
}

// Capture records path's pre-change content (for edit/delete) at most once
// per run, then appends {path, action} to the change log. beforeContent is
// ignored for create actions. All I/O failures are logged and swallowed —
// snapshotting must never break the run.
func (m *Manager) Capture(relPath string, action Action, beforeContent []byte) {
	if !m.savedPaths[relPath] {
		m.savedPaths[relPath] = true
		if action != ActionCreate {
			dest := filepath.Join(m.dir, relPath)
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				log.Warn().Err(err).Str("path", relPath).Msg("snapshot: failed to create directory")
			} else if err := os.WriteFile(dest, beforeContent, 0o644); err != nil {
				log.Warn().Err(err).Str("path", relPath).Msg("snapshot: failed to write pre-change content")
			}
		}
	}

	m.meta.Changes = append(m.meta.Changes, Change{Path: relPath, Action: action})
	if err := m.writeMetadata(); err != nil {
		log.Warn().Err(err).Msg("snapshot: failed to update metadata")
	}
}

// Cleanup deletes the snapshot directory if zero changes were recorded.
func (m *Manager) Cleanup() {
	if len(m.meta.Changes) == 0 {
		if err := os.RemoveAll(m.dir); err != nil {
			log.Warn().Err(err).Msg("snapshot: failed to remove empty snapshot directory")
		}
	}
}

func (m *Manager) writeMetadata() error {
	data, err := json.MarshalIndent(m.meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.dir, "metadata.json"), data, 0o644)
}

func newID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)[:8]
	}
	return hex.EncodeToString(b)
}

func label(firstUserMessage string) string {
	s := strings.TrimSpace(firstUserMessage)
	r := []rune(s)
	if len(r) <= labelMaxChars {
		return s
	}
	return string(r[:labelMaxChars]) + "…"
}

// pruneOld deletes snapshot directories past the retention cap, oldest
// first by their metadata.json timestamp field. justCreated is always kept.
func pruneOld(root, justCreated string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}

	type item struct {
		name   string
		unixMS int64
	}
	var items []item
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, e.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var md Metadata
		if err := json.Unmarshal(data, &md); err != nil {
			continue
		}
		items = append(items, item{name: e.Name(), unixMS: md.UnixMS})
	}

	if len(items) <= maxPerProject {
		return
	}

	sort.Slice(items, func(i, j int) bool { return items[i].unixMS > items[j].unixMS })
	for _, it := range items[maxPerProject:] {
		if it.name == justCreated {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, it.name)); err != nil {
			log.Warn().Err(err).Str("snapshot", it.name).Msg("snapshot: failed to prune old snapshot")
		}
	}
}
