/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package fontpack moves whole catalogs in and out of the store: zip packs
// for backup and transfer, and the legacy data/fonts.json + public/ layout.
package fontpack

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"tattoofonts/internal/domain"
	applog "tattoofonts/internal/log"
	"tattoofonts/internal/storage"
	"tattoofonts/internal/version"
)

const (
	ManifestName = "fontpack.manifest.txt"
	CatalogName  = "catalog.json"
	fontsDir     = "fonts"

	// maxFontEntry bounds a single font read from a pack.
	maxFontEntry = 64 << 20
)

// Catalog is the subset of the store a pack or legacy import touches.
type Catalog interface {
	Catalog(ctx context.Context, includeHidden bool) (domain.Catalog, error)
	FontFile(ctx context.Context, id string) (domain.Font, []byte, error)
	GetFont(ctx context.Context, id string) (domain.Font, error)
	AddCategory(ctx context.Context, name string) (string, error)
	CreateFont(ctx context.Context, nf storage.NewFont) (domain.Font, error)
}

// Result counts what an import did.
type Result struct {
	Imported int
	Skipped  int
}

func packFontName(f domain.Font) string {
	ext := f.FileExt
	if ext == "" {
		ext, _ = domain.FontExt(f.OriginalFilename)
	}
	return fontsDir + "/" + f.ID + "." + ext
}

// Export writes every font, hidden ones included, into destZip. The
// catalog's file fields point at the entries inside the archive.
func Export(ctx context.Context, st Catalog, destZip string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("fontpack"), "export").With(slog.String("zip", destZip))
	if strings.TrimSpace(destZip) == "" {
		return 0, errors.New("destZip is required")
	}
	cat, err := st.Catalog(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("read catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	// On Windows, remove destination if present before create
	_ = os.Remove(destZip)
	zf, err := os.Create(destZip)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	manifest := fmt.Sprintf("Tattoo Fonts Pack\nCreated: %s\nBy: tattoofonts %s\nFonts: %d\nCategories: %s\n",
		time.Now().UTC().Format(time.RFC3339), version.String(), len(cat.Fonts), strings.Join(cat.Categories, ", "))
	if err := writeEntry(zw, ManifestName, []byte(manifest)); err != nil {
		return 0, err
	}

	out := domain.Catalog{Categories: cat.Categories, Fonts: make([]domain.Font, 0, len(cat.Fonts))}
	for _, f := range cat.Fonts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		_, data, err := st.FontFile(ctx, f.ID)
		if err != nil {
			l.Error("read font file failed", slog.String("font", f.ID), slog.Any("err", err))
			return 0, fmt.Errorf("font %s: %w", f.ID, err)
		}
		name := packFontName(f)
		if err := writeEntry(zw, name, data); err != nil {
			return 0, err
		}
		f.File = name
		out.Fonts = append(out.Fonts, f)
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return 0, err
	}
	if err := writeEntry(zw, CatalogName, b); err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finish zip: %w", err)
	}
	l.Info("font pack exported", slog.Int("fonts", len(out.Fonts)))
	return len(out.Fonts), nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Import loads a pack written by Export. Fonts whose id already exists are
// skipped, never overwritten.
func Import(ctx context.Context, st Catalog, packZip string) (Result, error) {
	l := applog.WithOperation(applog.WithComponent("fontpack"), "import").With(slog.String("zip", packZip))
	var res Result
	if strings.TrimSpace(packZip) == "" {
		return res, errors.New("packZip is required")
	}
	r, err := zip.OpenReader(packZip)
	if err != nil {
		return res, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	entries := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		entries[path.Clean(f.Name)] = f
	}
	cf, ok := entries[CatalogName]
	if !ok {
		return res, fmt.Errorf("pack has no %s", CatalogName)
	}
	raw, err := readEntry(cf)
	if err != nil {
		return res, err
	}
	var cat domain.Catalog
	if err := json.Unmarshal(raw, &cat); err != nil {
		return res, fmt.Errorf("parse %s: %w", CatalogName, err)
	}
	for _, c := range cat.Categories {
		if _, err := st.AddCategory(ctx, c); err != nil {
			return res, fmt.Errorf("category %q: %w", c, err)
		}
	}
	for _, f := range cat.Fonts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if f.ID != "" {
			if _, err := st.GetFont(ctx, f.ID); err == nil {
				l.Warn("skip existing font", slog.String("font", f.ID))
				res.Skipped++
				continue
			} else if !errors.Is(err, storage.ErrNotFound) {
				return res, err
			}
		}
		ze, ok := entries[path.Clean(f.File)]
		if !ok {
			l.Warn("font file missing from pack", slog.String("font", f.ID), slog.String("file", f.File))
			res.Skipped++
			continue
		}
		data, err := readEntry(ze)
		if err != nil {
			return res, err
		}
		if _, err := st.CreateFont(ctx, newFontFrom(f, data)); err != nil {
			return res, fmt.Errorf("import font %s: %w", f.Name, err)
		}
		res.Imported++
	}
	l.Info("font pack imported", slog.Int("imported", res.Imported), slog.Int("skipped", res.Skipped))
	return res, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxFontEntry {
		return nil, fmt.Errorf("%s: entry too large", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(io.LimitReader(rc, maxFontEntry+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(b) > maxFontEntry {
		return nil, fmt.Errorf("%s: entry too large", f.Name)
	}
	return b, nil
}

func newFontFrom(f domain.Font, data []byte) storage.NewFont {
	ext := f.FileExt
	if ext == "" {
		ext, _ = domain.FontExt(f.File)
	}
	orig := f.OriginalFilename
	if orig == "" {
		orig = path.Base(f.File)
	}
	return storage.NewFont{
		ID:               f.ID,
		Name:             f.Name,
		Category:         f.Category,
		IsPremium:        f.IsPremium,
		Visible:          f.Visible,
		SupportsBold:     f.Supports.Bold,
		SupportsItalic:   f.Supports.Italic,
		SortOrder:        f.SortOrder,
		Rating:           f.Rating,
		ReviewsCount:     f.ReviewsCount,
		OriginalFilename: orig,
		Ext:              ext,
		Data:             data,
		CreatedAt:        f.CreatedAt,
	}
}
