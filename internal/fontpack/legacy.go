/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package fontpack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"tattoofonts/internal/domain"
	applog "tattoofonts/internal/log"
	"tattoofonts/internal/storage"
)

// legacyFont is one entry of data/fonts.json. Optional flags default to
// true when absent.
type legacyFont struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	File         string   `json:"file"` // "/fonts/<name>.<ext>" under public/
	IsPremium    bool     `json:"isPremium"`
	Rating       *float64 `json:"rating"`
	ReviewsCount *int     `json:"reviewsCount"`
	Supports     *struct {
		Bold   *bool `json:"bold"`
		Italic *bool `json:"italic"`
	} `json:"supports"`
	Visible   *bool `json:"visible"`
	SortOrder *int  `json:"sortOrder"`
}

type legacyDB struct {
	Categories []string     `json:"categories"`
	Fonts      []legacyFont `json:"fonts"`
}

func orTrue(b *bool) bool { return b == nil || *b }

// ImportLegacy reads <root>/data/fonts.json and the font files under
// <root>/public. Existing ids are skipped; missing files are skipped with
// a warning.
func ImportLegacy(ctx context.Context, st Catalog, root string) (Result, error) {
	l := applog.WithOperation(applog.WithComponent("fontpack"), "import-legacy").With(slog.String("root", root))
	var res Result
	if strings.TrimSpace(root) == "" {
		return res, errors.New("root is required")
	}
	raw, err := os.ReadFile(filepath.Join(root, "data", "fonts.json"))
	if err != nil {
		return res, fmt.Errorf("read fonts.json: %w", err)
	}
	var db legacyDB
	if err := json.Unmarshal(raw, &db); err != nil {
		return res, fmt.Errorf("parse fonts.json: %w", err)
	}
	for _, c := range db.Categories {
		if _, err := st.AddCategory(ctx, c); err != nil {
			return res, fmt.Errorf("category %q: %w", c, err)
		}
	}
	public := filepath.Join(root, "public")
	for _, lf := range db.Fonts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if lf.ID != "" {
			if _, err := st.GetFont(ctx, lf.ID); err == nil {
				res.Skipped++
				continue
			} else if !errors.Is(err, storage.ErrNotFound) {
				return res, err
			}
		}
		// Clean against "/" so ../ segments cannot leave public/.
		rel := path.Clean("/" + lf.File)
		if rel == "/" {
			l.Warn("font without file", slog.String("font", lf.Name))
			res.Skipped++
			continue
		}
		data, err := os.ReadFile(filepath.Join(public, filepath.FromSlash(rel)))
		if err != nil {
			l.Warn("font file unreadable", slog.String("font", lf.Name), slog.String("file", lf.File), slog.Any("err", err))
			res.Skipped++
			continue
		}
		ext, ok := domain.FontExt(rel)
		if !ok {
			l.Warn("unsupported font type", slog.String("font", lf.Name), slog.String("ext", ext))
			res.Skipped++
			continue
		}
		nf := storage.NewFont{
			ID:               lf.ID,
			Name:             lf.Name,
			Category:         lf.Category,
			IsPremium:        lf.IsPremium,
			Visible:          orTrue(lf.Visible),
			SupportsBold:     true,
			SupportsItalic:   true,
			SortOrder:        lf.SortOrder,
			Rating:           lf.Rating,
			ReviewsCount:     lf.ReviewsCount,
			OriginalFilename: path.Base(rel),
			Ext:              ext,
			Data:             data,
		}
		if lf.Supports != nil {
			nf.SupportsBold = orTrue(lf.Supports.Bold)
			nf.SupportsItalic = orTrue(lf.Supports.Italic)
		}
		if strings.TrimSpace(nf.Category) == "" {
			nf.Category = "Serif"
		}
		if _, err := st.CreateFont(ctx, nf); err != nil {
			return res, fmt.Errorf("import font %s: %w", lf.Name, err)
		}
		res.Imported++
	}
	l.Info("legacy catalog imported", slog.Int("imported", res.Imported), slog.Int("skipped", res.Skipped))
	return res, nil
}
