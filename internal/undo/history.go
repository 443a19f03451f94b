/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps an undo/redo history of preview card settings, one
// stack per font.
package undo

import (
	"sync"
	"time"

	"tattoofonts/internal/domain"
)

// Entry is one recorded card state.
type Entry struct {
	FontID   string
	Settings domain.PreviewSettings
	TS       time.Time
}

// size approximates the memory held by an entry.
func (e Entry) size() int {
	return entryOverhead + len(e.FontID) + len(e.Settings.Text) + len(e.Settings.Color)
}

const entryOverhead = 128

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerFont limits entries per font (0 means unlimited).
	MaxPerFont int
	// MinInterval merges changes recorded in quick succession, such as a
	// slider drag, into a single undo step.
	MinInterval time.Duration
}

// Manager is an in-memory undo/redo stack per font. The caller owns the
// current state; the manager keeps the states before and after it.
// It is safe for concurrent use.
type Manager struct {
	cfg  Config
	mu   sync.Mutex
	undo map[string][]Entry
	redo map[string][]Entry
	// lastTS is the time of the latest Record per font, used for coalescing.
	lastTS     map[string]time.Time
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 1 << 20
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 400 * time.Millisecond
	}
	return &Manager{
		cfg:    cfg,
		undo:   make(map[string][]Entry),
		redo:   make(map[string][]Entry),
		lastTS: make(map[string]time.Time),
	}
}

// Record stores prev, the state before a change made at ts. Within
// MinInterval of the previous Record for the same font the change joins
// the previous step, so one Undo reverts the whole burst. Redo history of
// the font is dropped.
func (m *Manager) Record(fontID string, prev domain.PreviewSettings, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearRedoLocked(fontID)
	last, seen := m.lastTS[fontID]
	m.lastTS[fontID] = ts
	if seen && len(m.undo[fontID]) > 0 && ts.Sub(last) < m.cfg.MinInterval {
		return
	}
	e := Entry{FontID: fontID, Settings: prev, TS: ts}
	m.undo[fontID] = append(m.undo[fontID], e)
	m.totalBytes += e.size()
	m.enforceCapsLocked(fontID)
}

// Undo returns the state before the latest recorded change and keeps
// current for Redo.
func (m *Manager) Undo(fontID string, current domain.PreviewSettings) (domain.PreviewSettings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[fontID]
	if len(stack) == 0 {
		return current, false
	}
	e := stack[len(stack)-1]
	m.undo[fontID] = stack[:len(stack)-1]
	m.totalBytes -= e.size()
	r := Entry{FontID: fontID, Settings: current, TS: e.TS}
	m.redo[fontID] = append(m.redo[fontID], r)
	m.totalBytes += r.size()
	// the next Record must not merge into an older step
	delete(m.lastTS, fontID)
	m.enforceCapsLocked(fontID)
	return e.Settings, true
}

// Redo reapplies the most recently undone state.
func (m *Manager) Redo(fontID string, current domain.PreviewSettings) (domain.PreviewSettings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[fontID]
	if len(r) == 0 {
		return current, false
	}
	e := r[len(r)-1]
	m.redo[fontID] = r[:len(r)-1]
	m.totalBytes -= e.size()
	u := Entry{FontID: fontID, Settings: current, TS: e.TS}
	m.undo[fontID] = append(m.undo[fontID], u)
	m.totalBytes += u.size()
	delete(m.lastTS, fontID)
	m.enforceCapsLocked(fontID)
	return e.Settings, true
}

func (m *Manager) CanUndo(fontID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[fontID]) > 0
}

func (m *Manager) CanRedo(fontID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[fontID]) > 0
}

// ClearFont drops both stacks of a font.
func (m *Manager) ClearFont(fontID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.undo[fontID] {
		m.totalBytes -= e.size()
	}
	m.clearRedoLocked(fontID)
	delete(m.undo, fontID)
	delete(m.redo, fontID)
	delete(m.lastTS, fontID)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, fonts int, totalEntries int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.undo {
		if len(v) > 0 {
			fonts++
		}
		totalEntries += len(v)
	}
	return m.totalBytes, fonts, totalEntries
}

func (m *Manager) clearRedoLocked(fontID string) {
	for _, e := range m.redo[fontID] {
		m.totalBytes -= e.size()
	}
	m.redo[fontID] = nil
}

func (m *Manager) enforceCapsLocked(fontID string) {
	if m.cfg.MaxPerFont > 0 {
		stack := m.undo[fontID]
		if len(stack) > m.cfg.MaxPerFont {
			toDrop := len(stack) - m.cfg.MaxPerFont
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= stack[i].size()
			}
			m.undo[fontID] = append([]Entry{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune the oldest undo entry across all fonts.
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		var (
			oldest   string
			oldestTS time.Time
			found    bool
		)
		for id, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldest, oldestTS, found = id, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldest]
		m.totalBytes -= stack[0].size()
		m.undo[oldest] = stack[1:]
		if len(m.undo[oldest]) == 0 {
			delete(m.undo, oldest)
		}
	}
}
