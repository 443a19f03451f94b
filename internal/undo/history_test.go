/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"

	"tattoofonts/internal/domain"
)

func settings(text string) domain.PreviewSettings {
	s := domain.DefaultPreviewSettings()
	s.Text = text
	return s
}

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1 << 20, MaxPerFont: 10, MinInterval: 10 * time.Millisecond})
	t0 := time.Now()
	m.Record("f", settings("a"), t0)
	m.Record("f", settings("ab"), t0.Add(20*time.Millisecond))
	if _, fonts, total := m.Stats(); fonts != 1 || total != 2 {
		t.Fatalf("expected 1 font and 2 entries, got fonts=%d total=%d", fonts, total)
	}
	cur := settings("abc")
	s, ok := m.Undo("f", cur)
	if !ok || s.Text != "ab" {
		t.Fatalf("undo expected 'ab', got ok=%v text=%q", ok, s.Text)
	}
	if !m.CanRedo("f") {
		t.Fatalf("redo should be available")
	}
	s, ok = m.Redo("f", s)
	if !ok || s.Text != "abc" {
		t.Fatalf("redo expected 'abc', got ok=%v text=%q", ok, s.Text)
	}
	if _, ok := m.Redo("f", s); ok {
		t.Fatalf("redo stack should be empty")
	}
	if s, ok := m.Undo("other", cur); ok || s != cur {
		t.Fatalf("undo on unknown font must return current unchanged")
	}
}

func TestCoalesceKeepsStateBeforeBurst(t *testing.T) {
	m := NewManager(Config{MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	start := settings("x")
	start.FontSizePx = 40
	m.Record("f", start, t0)
	for i := 1; i <= 5; i++ {
		s := start
		s.FontSizePx = 40 + float64(i)
		m.Record("f", s, t0.Add(time.Duration(i)*20*time.Millisecond))
	}
	if _, _, total := m.Stats(); total != 1 {
		t.Fatalf("expected the drag to coalesce into 1 entry, got %d", total)
	}
	got, ok := m.Undo("f", settings("x"))
	if !ok || got.FontSizePx != 40 {
		t.Fatalf("undo should restore the pre-drag size, got %v", got.FontSizePx)
	}
	// after an undo the next change starts a fresh step
	m.Record("f", got, t0.Add(130*time.Millisecond))
	if _, _, total := m.Stats(); total != 1 || m.CanRedo("f") {
		t.Fatalf("record after undo should push and clear redo")
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1 << 20, MaxPerFont: 2, MinInterval: time.Millisecond})
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		m.Record("f", settings("xxxxx"), t0.Add(time.Duration(i)*time.Second))
	}
	if _, _, total := m.Stats(); total != 2 {
		t.Fatalf("expected MaxPerFont cap to limit to 2, got %d", total)
	}
}

func TestClearFontAndStats(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Millisecond})
	m.Record("f", settings("abcdef"), time.Now())
	m.Undo("f", settings("g"))
	m.Record("f", settings("h"), time.Now().Add(time.Second))
	tb, fonts, total := m.Stats()
	if tb == 0 || fonts != 1 || total != 1 {
		t.Fatalf("unexpected stats before clear: tb=%d fonts=%d total=%d", tb, fonts, total)
	}
	m.ClearFont("f")
	if tb, fonts, total := m.Stats(); tb != 0 || fonts != 0 || total != 0 {
		t.Fatalf("expected cleared stats to be zero, got tb=%d fonts=%d total=%d", tb, fonts, total)
	}
}

func TestGlobalPruneAcrossFonts(t *testing.T) {
	one := Entry{FontID: "a", Settings: settings("xxxx")}.size()
	m := NewManager(Config{MaxBytes: 2 * one, MinInterval: time.Millisecond})
	t0 := time.Now()
	m.Record("a", settings("xxxx"), t0)
	m.Record("b", settings("yyyy"), t0.Add(time.Second))
	m.Record("b", settings("zzzz"), t0.Add(2*time.Second))

	if _, ok := m.Undo("a", settings("")); ok {
		t.Fatalf("expected font a to have been pruned")
	}
	if _, ok := m.Undo("b", settings("")); !ok {
		t.Fatalf("expected font b to keep entries")
	}
}
