/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"tattoofonts/internal/domain"
)

// FileURL is the public path a font file is served from.
func FileURL(id string) string { return "/api/fonts/file/" + id }

const fontColumns = `id, name, category, is_premium, visible, supports_bold, supports_italic,
	sort_order, rating, reviews_count, mime_type, original_filename, file_ext, size_bytes, created_at, updated_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanFont(r rowScanner) (domain.Font, error) {
	var (
		f                  domain.Font
		sortOrder, reviews sql.NullInt64
		rating             sql.NullFloat64
		created, updated   string
	)
	err := r.Scan(&f.ID, &f.Name, &f.Category, &f.IsPremium, &f.Visible, &f.Supports.Bold, &f.Supports.Italic,
		&sortOrder, &rating, &reviews, &f.MimeType, &f.OriginalFilename, &f.FileExt, &f.SizeBytes, &created, &updated)
	if err != nil {
		return domain.Font{}, err
	}
	if sortOrder.Valid {
		v := int(sortOrder.Int64)
		f.SortOrder = &v
	}
	if rating.Valid {
		v := rating.Float64
		f.Rating = &v
	}
	if reviews.Valid {
		v := int(reviews.Int64)
		f.ReviewsCount = &v
	}
	f.CreatedAt = parseTS(created)
	f.UpdatedAt = parseTS(updated)
	f.File = FileURL(f.ID)
	return f, nil
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// --- categories ---

// ListCategories returns categories in display order.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// AddCategory inserts name unless a category equal under Unicode case
// folding exists; the stored spelling is returned either way.
func (s *Store) AddCategory(ctx context.Context, name string) (string, error) {
	var out string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.ensureCategory(ctx, tx, name)
		return err
	})
	return out, err
}

// SeedCategories adds the given categories when the table is empty.
func (s *Store) SeedCategories(ctx context.Context, names []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		for _, c := range names {
			if _, err := s.ensureCategory(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ensureCategory(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("category name is required")
	}
	rows, err := tx.QueryContext(ctx, `SELECT name, position FROM categories`)
	if err != nil {
		return "", fmt.Errorf("read categories: %w", err)
	}
	fold := cases.Fold()
	want := fold.String(name)
	maxPos, found := 0, ""
	for rows.Next() {
		var (
			existing string
			pos      int
		)
		if err := rows.Scan(&existing, &pos); err != nil {
			_ = rows.Close()
			return "", err
		}
		if found == "" && fold.String(existing) == want {
			found = existing
		}
		maxPos = max(maxPos, pos)
	}
	if err := rows.Close(); err != nil {
		return "", err
	}
	if found != "" {
		return found, nil
	}
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO categories(name, position, created_at) VALUES(?, ?, ?)`),
		name, maxPos+1, formatTS(s.now())); err != nil {
		return "", fmt.Errorf("insert category: %w", err)
	}
	return name, nil
}

// --- fonts ---

// FontQuery filters ListFonts. Zero value lists every visible font.
type FontQuery struct {
	IncludeHidden bool
	Category      string
	Search        string
	// IDs restricts the result to these ids when non-nil (favorites).
	IDs    []string
	Limit  int // 0 = no limit
	Offset int
}

func (fq FontQuery) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !fq.IncludeHidden {
		conds = append(conds, "visible = ?")
		args = append(args, true)
	}
	if c := strings.TrimSpace(fq.Category); c != "" {
		conds = append(conds, "category = ?")
		args = append(args, c)
	}
	if q := strings.TrimSpace(fq.Search); q != "" {
		conds = append(conds, `LOWER(name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
	}
	if fq.IDs != nil {
		conds = append(conds, "id IN ("+placeholders(len(fq.IDs))+")")
		for _, id := range fq.IDs {
			args = append(args, id)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// orderBy puts explicitly ordered fonts first, then the rest by name.
const orderBy = ` ORDER BY CASE WHEN sort_order IS NULL THEN 1 ELSE 0 END, sort_order, LOWER(name), id`

// ListFonts returns one page of fonts plus the total matching count.
func (s *Store) ListFonts(ctx context.Context, fq FontQuery) ([]domain.Font, int, error) {
	if fq.IDs != nil && len(fq.IDs) == 0 {
		return []domain.Font{}, 0, nil
	}
	where, args := fq.where()
	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM fonts`+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fonts: %w", err)
	}
	query := `SELECT ` + fontColumns + ` FROM fonts` + where + orderBy
	if fq.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", fq.Limit, max(fq.Offset, 0))
	}
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list fonts: %w", err)
	}
	defer rows.Close()
	fonts := []domain.Font{}
	for rows.Next() {
		f, err := scanFont(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan font: %w", err)
		}
		fonts = append(fonts, f)
	}
	return fonts, total, rows.Err()
}

// GetFont returns one font or ErrNotFound.
func (s *Store) GetFont(ctx context.Context, id string) (domain.Font, error) {
	f, err := scanFont(s.db.QueryRowContext(ctx, s.q(`SELECT `+fontColumns+` FROM fonts WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Font{}, fmt.Errorf("font %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Font{}, fmt.Errorf("get font: %w", err)
	}
	return f, nil
}

// NewFont carries everything needed to create a catalog entry.
type NewFont struct {
	ID               string // generated when empty
	Name             string
	Category         string
	IsPremium        bool
	Visible          bool
	SupportsBold     bool
	SupportsItalic   bool
	SortOrder        *int
	Rating           *float64
	ReviewsCount     *int
	OriginalFilename string
	Ext              string
	Data             []byte
	CreatedAt        time.Time
}

// CreateFont stores metadata and file in one transaction. Unknown
// categories are added on the fly.
func (s *Store) CreateFont(ctx context.Context, nf NewFont) (domain.Font, error) {
	if strings.TrimSpace(nf.Name) == "" {
		return domain.Font{}, errors.New("font name is required")
	}
	if len(nf.Data) == 0 {
		return domain.Font{}, errors.New("font file is empty")
	}
	if nf.ID == "" {
		nf.ID = uuid.NewString()
	}
	ext, _ := domain.FontExt("x." + nf.Ext)
	now := s.now()
	created := nf.CreatedAt
	if created.IsZero() {
		created = now
	}
	sum := sha256.Sum256(nf.Data)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cat, err := s.ensureCategory(ctx, tx, nf.Category)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO fonts(`+fontColumns+`)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			nf.ID, strings.TrimSpace(nf.Name), cat, nf.IsPremium, nf.Visible, nf.SupportsBold, nf.SupportsItalic,
			nullInt(nf.SortOrder), nullFloat(nf.Rating), nullInt(nf.ReviewsCount), domain.MimeForExt(ext),
			nf.OriginalFilename, ext, int64(len(nf.Data)), formatTS(created), formatTS(now)); err != nil {
			return fmt.Errorf("insert font: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO font_files(font_id, data, sha256) VALUES(?, ?, ?)`),
			nf.ID, nf.Data, hex.EncodeToString(sum[:])); err != nil {
			return fmt.Errorf("insert font file: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Font{}, err
	}
	s.log.Info("font created", slog.String("id", nf.ID), slog.String("name", nf.Name))
	return s.GetFont(ctx, nf.ID)
}

// UpdateFont applies a validated patch and returns the updated font.
func (s *Store) UpdateFont(ctx context.Context, id string, p domain.FontPatch) (domain.Font, error) {
	if err := p.Validate(); err != nil {
		return domain.Font{}, err
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		f, err := scanFont(tx.QueryRowContext(ctx, s.q(`SELECT `+fontColumns+` FROM fonts WHERE id = ?`), id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("font %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		p.Apply(&f)
		if p.Category != nil {
			if f.Category, err = s.ensureCategory(ctx, tx, f.Category); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, s.q(`UPDATE fonts SET name = ?, category = ?, is_premium = ?, visible = ?,
			supports_bold = ?, supports_italic = ?, rating = ?, reviews_count = ?, updated_at = ? WHERE id = ?`),
			f.Name, f.Category, f.IsPremium, f.Visible, f.Supports.Bold, f.Supports.Italic,
			nullFloat(f.Rating), nullInt(f.ReviewsCount), formatTS(s.now()), id)
		if err != nil {
			return fmt.Errorf("update font: %w", err)
		}
		// Rendered previews may depend on name or style support.
		return s.invalidatePreviews(ctx, tx, id)
	})
	if err != nil {
		return domain.Font{}, err
	}
	return s.GetFont(ctx, id)
}

// DeleteFont removes the font, its file, favorites and cached previews.
func (s *Store) DeleteFont(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.invalidatePreviews(ctx, tx, id); err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM favorites WHERE font_id = ?`,
			`DELETE FROM font_files WHERE font_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, s.q(stmt), id); err != nil {
				return fmt.Errorf("delete font dependents: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM fonts WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete font: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("font %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// Reorder assigns sort orders following ids. Without a category the
// positions are 1..n across the catalog; with one, they continue from the
// smallest order currently used in that category so other categories keep
// their relative placement.
func (s *Store) Reorder(ctx context.Context, ids []string, category string) error {
	if len(ids) == 0 {
		return errors.New("fontIds must not be empty")
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("duplicate font id %s", id)
		}
		seen[id] = true
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		base := 1
		if c := strings.TrimSpace(category); c != "" {
			var lo sql.NullInt64
			if err := tx.QueryRowContext(ctx, s.q(`SELECT MIN(COALESCE(sort_order, 0)) FROM fonts WHERE category = ?`), c).Scan(&lo); err != nil {
				return fmt.Errorf("category base order: %w", err)
			}
			base = int(lo.Int64)
		}
		now := formatTS(s.now())
		for i, id := range ids {
			res, err := tx.ExecContext(ctx, s.q(`UPDATE fonts SET sort_order = ?, updated_at = ? WHERE id = ?`), base+i, now, id)
			if err != nil {
				return fmt.Errorf("reorder: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("font %s: %w", id, ErrNotFound)
			}
		}
		return nil
	})
}

// FontFile returns the stored bytes of a font together with its metadata.
func (s *Store) FontFile(ctx context.Context, id string) (domain.Font, []byte, error) {
	f, err := s.GetFont(ctx, id)
	if err != nil {
		return domain.Font{}, nil, err
	}
	var data []byte
	err = s.db.QueryRowContext(ctx, s.q(`SELECT data FROM font_files WHERE font_id = ?`), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Font{}, nil, fmt.Errorf("font file %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Font{}, nil, fmt.Errorf("read font file: %w", err)
	}
	return f, data, nil
}

// Catalog returns categories and all fonts (hidden ones when includeHidden).
func (s *Store) Catalog(ctx context.Context, includeHidden bool) (domain.Catalog, error) {
	cats, err := s.ListCategories(ctx)
	if err != nil {
		return domain.Catalog{}, err
	}
	fonts, _, err := s.ListFonts(ctx, FontQuery{IncludeHidden: includeHidden})
	if err != nil {
		return domain.Catalog{}, err
	}
	return domain.Catalog{Categories: cats, Fonts: fonts}, nil
}
