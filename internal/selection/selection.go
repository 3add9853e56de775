// Package selection tracks the current selection of items in a workspace:
// the ordered store paths that the next action works on when it is given no
// explicit arguments.
//
// Previous selections are kept in a bounded history so the user can step
// back and forward through them. The whole history is persisted as YAML
// after every change.
package selection

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/kmd/internal/atomicfile"
)

// MaxHistory bounds the number of remembered selections.
const MaxHistory = 50

// ErrNoHistory is returned when stepping past either end of the history.
var ErrNoHistory = errors.New("no more selection history")

type persisted struct {
	History [][]string `yaml:"history"`
	Current int        `yaml:"current"`
}

// History is the persisted selection history of one workspace. Only the
// entry at the cursor is live. Safe for concurrent use.
type History struct {
	path   string
	exists func(storePath string) bool
	log    *zap.Logger

	mu      sync.Mutex
	entries [][]string
	current int
}

// Open loads the history at path. Paths for which exists reports false are
// dropped; selections left empty by that are dropped too.
func Open(path string, exists func(string) bool, log *zap.Logger) (*History, error) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &History{path: path, exists: exists, log: log, current: -1}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}

	var p persisted
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse selection %s: %w", path, err)
	}

	dropped := 0
	for i, sel := range p.History {
		kept := h.filter(sel)
		dropped += len(sel) - len(kept)
		if len(kept) == 0 && len(sel) > 0 {
			if i < p.Current {
				p.Current--
			}
			continue
		}
		h.entries = append(h.entries, kept)
	}
	h.current = clamp(p.Current, len(h.entries))
	if dropped > 0 {
		log.Info("dropped missing paths from selection", zap.Int("count", dropped))
	}
	return h, nil
}

func (h *History) filter(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if h.exists == nil || h.exists(p) {
			out = append(out, p)
		}
	}
	return out
}

func clamp(i, n int) int {
	if n == 0 {
		return -1
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Current returns a copy of the live selection (empty if none).
func (h *History) Current() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentLocked()
}

func (h *History) currentLocked() []string {
	if h.current < 0 || h.current >= len(h.entries) {
		return []string{}
	}
	return slices.Clone(h.entries[h.current])
}

// Set replaces the live selection wholesale. Any forward history is
// discarded and the oldest entries are trimmed beyond MaxHistory.
func (h *History) Set(paths []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.entries
	prevCur := h.current

	h.entries = append(h.entries[:h.current+1:h.current+1], dedupe(paths))
	if over := len(h.entries) - MaxHistory; over > 0 {
		h.entries = h.entries[over:]
	}
	h.current = len(h.entries) - 1

	if err := h.saveLocked(); err != nil {
		h.entries, h.current = prev, prevCur
		return err
	}
	return nil
}

// Clear sets an empty selection.
func (h *History) Clear() error {
	return h.Set(nil)
}

// Back moves the cursor to the previous selection and returns it.
func (h *History) Back() ([]string, error) {
	return h.step(-1)
}

// Forward moves the cursor to the next selection and returns it.
func (h *History) Forward() ([]string, error) {
	return h.step(1)
}

func (h *History) step(delta int) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.current + delta
	if next < 0 || next >= len(h.entries) {
		return nil, ErrNoHistory
	}
	prev := h.current
	h.current = next
	if err := h.saveLocked(); err != nil {
		h.current = prev
		return nil, err
	}
	return h.currentLocked(), nil
}

// Remove drops paths from every remembered selection, e.g. after they were
// archived, so stepping back never selects a missing item.
func (h *History) Remove(paths ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	changed := false
	for i, sel := range h.entries {
		out := slices.DeleteFunc(slices.Clone(sel), func(p string) bool {
			return slices.Contains(paths, p)
		})
		if len(out) != len(sel) {
			h.entries[i] = out
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return h.saveLocked()
}

// Entries returns a copy of the whole history and the cursor position.
func (h *History) Entries() ([][]string, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]string, len(h.entries))
	for i, e := range h.entries {
		out[i] = slices.Clone(e)
	}
	return out, h.current
}

func (h *History) saveLocked() error {
	data, err := yaml.Marshal(persisted{History: h.entries, Current: h.current})
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	if err := atomicfile.WriteFile(h.path, data, 0o644); err != nil {
		return fmt.Errorf("write selection: %w", err)
	}
	return nil
}

func dedupe(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
