/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// Data model of the font catalog and of a single preview card. Fonts
// serialise to the JSON shape served by the public API and stored in
// legacy fonts.json catalogs.

import (
	"errors"
	"fmt"
	"math"
	"path"
	"strings"
	"time"
)

// Supports lists the styles a font family can render natively.
type Supports struct {
	Bold   bool `json:"bold"`
	Italic bool `json:"italic"`
}

// Font is one catalog entry.
type Font struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Category         string    `json:"category"`
	File             string    `json:"file"` // public URL of the font asset
	IsPremium        bool      `json:"isPremium"`
	Rating           *float64  `json:"rating,omitempty"`
	ReviewsCount     *int      `json:"reviewsCount,omitempty"`
	Supports         Supports  `json:"supports"`
	Visible          bool      `json:"visible"`
	SortOrder        *int      `json:"sortOrder,omitempty"`
	MimeType         string    `json:"mimeType,omitempty"`
	OriginalFilename string    `json:"originalFilename,omitempty"`
	FileExt          string    `json:"fileExt,omitempty"`
	SizeBytes        int64     `json:"sizeBytes,omitempty"`
	CreatedAt        time.Time `json:"createdAt,omitzero"`
	UpdatedAt        time.Time `json:"updatedAt,omitzero"`
}

// Catalog is the categories plus fonts document.
type Catalog struct {
	Categories []string `json:"categories"`
	Fonts      []Font   `json:"fonts"`
}

// InitialCategories seed a fresh catalog.
var InitialCategories = []string{"Serif", "Sans-Serif", "Corsivo", "Stampatello", "Gotico"}

// FontPatch is a partial update; nil fields stay unchanged.
type FontPatch struct {
	Name           *string  `json:"name,omitempty"`
	Category       *string  `json:"category,omitempty"`
	IsPremium      *bool    `json:"isPremium,omitempty"`
	Visible        *bool    `json:"visible,omitempty"`
	SupportsBold   *bool    `json:"supportsBold,omitempty"`
	SupportsItalic *bool    `json:"supportsItalic,omitempty"`
	Rating         *float64 `json:"rating,omitempty"`
	ReviewsCount   *int     `json:"reviewsCount,omitempty"`
}

var ErrEmptyPatch = errors.New("no updatable fields")

// Validate checks field ranges. An empty patch is an error.
func (p FontPatch) Validate() error {
	if p == (FontPatch{}) {
		return ErrEmptyPatch
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return errors.New("name must not be empty")
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return errors.New("category must not be empty")
	}
	if p.Rating != nil && (math.IsNaN(*p.Rating) || *p.Rating < 0 || *p.Rating > 5) {
		return fmt.Errorf("rating %v out of range [0,5]", *p.Rating)
	}
	if p.ReviewsCount != nil && *p.ReviewsCount < 0 {
		return errors.New("reviewsCount must not be negative")
	}
	return nil
}

// Apply copies the set fields onto f.
func (p FontPatch) Apply(f *Font) {
	if p.Name != nil {
		f.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		f.Category = strings.TrimSpace(*p.Category)
	}
	if p.IsPremium != nil {
		f.IsPremium = *p.IsPremium
	}
	if p.Visible != nil {
		f.Visible = *p.Visible
	}
	if p.SupportsBold != nil {
		f.Supports.Bold = *p.SupportsBold
	}
	if p.SupportsItalic != nil {
		f.Supports.Italic = *p.SupportsItalic
	}
	if p.Rating != nil {
		v := *p.Rating
		f.Rating = &v
	}
	if p.ReviewsCount != nil {
		v := *p.ReviewsCount
		f.ReviewsCount = &v
	}
}

var fontMimeTypes = map[string]string{
	"ttf":   "font/ttf",
	"otf":   "font/otf",
	"woff":  "font/woff",
	"woff2": "font/woff2",
}

// FontExt returns the lower-case extension of filename, defaulting to ttf,
// and whether it is an accepted font format.
func FontExt(filename string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = "ttf"
	}
	_, ok := fontMimeTypes[ext]
	return ext, ok
}

// MimeForExt maps a font extension to its media type.
func MimeForExt(ext string) string {
	if m, ok := fontMimeTypes[strings.ToLower(ext)]; ok {
		return m
	}
	return "application/octet-stream"
}

// ExportFileName builds "<Font_Name>_preview.<ext>" with whitespace runs
// collapsed to underscores and path separators removed.
func ExportFileName(fontName, ext string) string {
	name := strings.Join(strings.Fields(fontName), "_")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '"', '*', '?', '<', '>', '|':
			return -1
		}
		return r
	}, name)
	if name == "" {
		name = "font"
	}
	return name + "_preview." + ext
}
