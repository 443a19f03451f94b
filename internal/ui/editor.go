/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"time"

	"tattoofonts/internal/domain"
	"tattoofonts/internal/export"
	"tattoofonts/internal/undo"
)

// FontSource loads a font with its file bytes.
type FontSource interface {
	FontFile(ctx context.Context, id string) (domain.Font, []byte, error)
}

// Editor is the headless state behind the desktop preview window: one
// selected font, the card settings per font and their undo history.
type Editor struct {
	src  FontSource
	hist *undo.Manager
	now  func() time.Time

	mu       sync.Mutex
	font     domain.Font
	data     []byte
	settings map[string]domain.PreviewSettings
	defaults domain.PreviewSettings
}

func NewEditor(src FontSource, hist *undo.Manager, defaults domain.PreviewSettings) *Editor {
	if hist == nil {
		hist = undo.NewManager(undo.Config{})
	}
	return &Editor{
		src:      src,
		hist:     hist,
		now:      time.Now,
		settings: make(map[string]domain.PreviewSettings),
		defaults: defaults.Normalize(),
	}
}

// Select loads a font and makes it current. Its previous settings, if
// any, are restored.
func (e *Editor) Select(ctx context.Context, id string) error {
	if e.src == nil {
		return errors.New("no font source")
	}
	f, data, err := e.src.FontFile(ctx, id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.font, e.data = f, data
	if _, ok := e.settings[id]; !ok {
		e.settings[id] = e.defaults
	}
	return nil
}

// Font is the current font; the zero Font before Select.
func (e *Editor) Font() domain.Font {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.font
}

func (e *Editor) Settings() domain.PreviewSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.settings[e.font.ID]; ok {
		return s
	}
	return e.defaults
}

// Update applies fn to the current settings and records the previous
// state for undo. It reports whether anything changed.
func (e *Editor) Update(fn func(*domain.PreviewSettings)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.font.ID
	prev, ok := e.settings[id]
	if !ok {
		prev = e.defaults
	}
	next := prev
	fn(&next)
	next = next.Normalize()
	if next == prev {
		return false
	}
	e.hist.Record(id, prev, e.now())
	e.settings[id] = next
	return true
}

func (e *Editor) Undo() bool { return e.step(e.hist.Undo) }
func (e *Editor) Redo() bool { return e.step(e.hist.Redo) }

func (e *Editor) step(op func(string, domain.PreviewSettings) (domain.PreviewSettings, bool)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.font.ID
	cur, ok := e.settings[id]
	if !ok {
		cur = e.defaults
	}
	s, ok := op(id, cur)
	if ok {
		e.settings[id] = s
	}
	return ok
}

// Reset restores the defaults for the current font and forgets its history.
func (e *Editor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings[e.font.ID] = e.defaults
	e.hist.ClearFont(e.font.ID)
}

func (e *Editor) CanUndo() bool { return e.hist.CanUndo(e.Font().ID) }
func (e *Editor) CanRedo() bool { return e.hist.CanRedo(e.Font().ID) }

// Preview builds the export preview for the current state.
func (e *Editor) Preview() (*export.Preview, error) {
	e.mu.Lock()
	f, data := e.font, e.data
	e.mu.Unlock()
	return export.NewPreview(f, data, e.Settings())
}

// Render rasterises the current preview for on-screen display.
func (e *Editor) Render(pixelRatio float64) (image.Image, error) {
	p, err := e.Preview()
	if err != nil {
		return nil, err
	}
	return export.Rasterize(p, export.PNGOptions{PixelRatio: pixelRatio})
}

// Export writes the current preview in format f and returns the suggested
// file name.
func (e *Editor) Export(w io.Writer, f export.Format) (string, error) {
	p, err := e.Preview()
	if err != nil {
		return "", err
	}
	if err := export.Render(w, p, f, export.PresetWeb, 0); err != nil {
		return "", err
	}
	return p.FileName(string(f)), nil
}
