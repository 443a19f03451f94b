/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontLibrary keeps parsed catalog fonts by id. Parsed fonts are immutable
// and shared; faces are created per Resolve because they are not safe for
// concurrent use.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[string]*opentype.Font
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[string]*opentype.Font)} }

// ParseFont parses TrueType or OpenType data.
func ParseFont(data []byte) (*opentype.Font, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return f, nil
}

// Load parses data and stores it under id, replacing any previous entry.
func (fl *FontLibrary) Load(id string, data []byte) (*opentype.Font, error) {
	f, err := ParseFont(data)
	if err != nil {
		return nil, fmt.Errorf("font %s: %w", id, err)
	}
	fl.Put(id, f)
	return f, nil
}

// Put stores an already parsed font under id.
func (fl *FontLibrary) Put(id string, f *opentype.Font) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[string]*opentype.Font)
	}
	fl.fonts[id] = f
}

// Get returns the parsed font for id.
func (fl *FontLibrary) Get(id string) (*opentype.Font, bool) {
	if fl == nil {
		return nil, false
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	f, ok := fl.fonts[id]
	return f, ok
}

// Forget drops id, e.g. after the font was deleted or replaced.
func (fl *FontLibrary) Forget(id string) {
	if fl == nil {
		return
	}
	fl.mu.Lock()
	delete(fl.fonts, id)
	fl.mu.Unlock()
}

var (
	defaultOnce sync.Once
	defaultFont *opentype.Font
)

// DefaultFont is Go Regular, used when a catalog font cannot be loaded.
func DefaultFont() *opentype.Font {
	defaultOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err == nil {
			defaultFont = f
		}
	})
	return defaultFont
}

// OTProvider resolves FontSpec using a FontLibrary and falls back to
// another Provider. Sizes are pixels, so faces are built at 72 DPI.
type OTProvider struct {
	Lib      *FontLibrary
	Fallback Provider
}

func (p OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.SizePx <= 0 {
		spec.SizePx = DefaultFontSizePx
	}
	if f, ok := p.Lib.Get(spec.Family); ok {
		if face, err := NewFace(f, spec.SizePx); err == nil {
			return face, metricsOf(face)
		}
	}
	if p.Fallback != nil {
		return p.Fallback.Resolve(spec)
	}
	if f := DefaultFont(); f != nil {
		if face, err := NewFace(f, spec.SizePx); err == nil {
			return face, metricsOf(face)
		}
	}
	return BasicProvider{}.Resolve(spec)
}

// NewFace builds an unhinted face so advances scale linearly with size.
func NewFace(f *opentype.Font, sizePx float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{Size: sizePx, DPI: 72, Hinting: font.HintingNone})
}
