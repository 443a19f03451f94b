/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls exporting several previews at once.
//
// Files are written flat into OutDir as <Font_Name>_preview.<ext>; a
// numeric suffix keeps fonts sharing a name apart.
type BatchOptions struct {
	Preset PresetName
	// Formats overrides the preset's defaults.
	Formats []Format
	// PixelRatio overrides the preset's raster ratio when > 0.
	PixelRatio float64
	OutDir     string
}

// Render writes p in format f with the preset's settings.
func Render(w io.Writer, p *Preview, f Format, preset PresetName, pixelRatio float64) error {
	switch f {
	case FormatPNG:
		if pixelRatio <= 0 {
			pixelRatio = presetPixelRatio(preset)
		}
		return RenderPNG(w, p, PNGOptions{PixelRatio: pixelRatio})
	case FormatSVG:
		return RenderSVG(w, p, SVGOptions{Background: preset == PresetPrint})
	case FormatPDF:
		return RenderPreviewPDF(w, p, PDFOptions{Margin: presetMargin(preset), Background: true})
	default:
		return fmt.Errorf("unknown format: %s", f)
	}
}

// BatchExport renders every preview in every format and returns the
// written paths.
func BatchExport(previews []*Preview, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	outDir := opt.OutDir
	if outDir == "" {
		outDir = filepath.Join("exports", string(opt.Preset))
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}

	used := map[string]bool{}
	var written []string
	for _, p := range previews {
		for _, f := range formats {
			name := uniqueName(used, p.FileName(string(f)))
			var buf bytes.Buffer
			if err := Render(&buf, p, f, opt.Preset, opt.PixelRatio); err != nil {
				return written, fmt.Errorf("%s %s: %w", p.FontName, f, err)
			}
			path := filepath.Join(outDir, name)
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return written, fmt.Errorf("write %s: %w", path, err)
			}
			written = append(written, path)
		}
	}
	return written, nil
}

// uniqueName returns name, or name with the lowest free -N suffix, and
// marks the result as used. Keys are case-insensitive.
func uniqueName(used map[string]bool, name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	cand := name
	for n := 2; used[strings.ToLower(cand)]; n++ {
		cand = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
	used[strings.ToLower(cand)] = true
	return cand
}

func presetDefaultFormats(p PresetName) []Format {
	switch p {
	case PresetWeb:
		return []Format{FormatPNG, FormatSVG}
	case PresetPrint:
		return []Format{FormatPDF, FormatPNG}
	default:
		return []Format{FormatPNG}
	}
}

func presetPixelRatio(p PresetName) float64 {
	if p == PresetPrint {
		return 6
	}
	return DefaultPixelRatio
}

func presetMargin(p PresetName) float64 {
	if p == PresetPrint {
		return 10
	}
	return 0
}
