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
)

// PreviewKey addresses one rendered preview variant.
type PreviewKey struct {
	FontID string
	// Kind is the output format: png, svg or pdf.
	Kind string
	W, H int
	// Settings is the serialized preview settings the blob was rendered from.
	Settings string
}

// hash collapses the key into a fixed-width primary key.
func (k PreviewKey) hash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d\x00%d\x00%s", k.FontID, k.Kind, k.W, k.H, k.Settings)))
	return hex.EncodeToString(sum[:])
}

// GetPreview returns the cached blob for key, or nil when absent, and
// refreshes its access time.
func (s *Store) GetPreview(ctx context.Context, k PreviewKey) ([]byte, error) {
	id := k.hash()
	var blob []byte
	err := s.db.QueryRowContext(ctx, s.q(`SELECT blob FROM previews WHERE cache_key = ?`), id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	_, _ = s.db.ExecContext(ctx, s.q(`UPDATE previews SET last_access = ? WHERE cache_key = ?`), formatTS(s.now()), id)
	return blob, nil
}

// PutPreview upserts a blob and evicts least recently used rows past the cap.
func (s *Store) PutPreview(ctx context.Context, k PreviewKey, blob []byte) error {
	if k.FontID == "" || k.Kind == "" {
		return errors.New("preview key needs font id and kind")
	}
	now := formatTS(s.now())
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO previews(cache_key, font_id, kind, w, h, blob, size, updated_at, last_access)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET blob = excluded.blob, size = excluded.size,
			updated_at = excluded.updated_at, last_access = excluded.last_access`),
		k.hash(), k.FontID, k.Kind, k.W, k.H, blob, int64(len(blob)), now, now)
	if err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	if s.previewCap > 0 {
		return s.EvictPreviewsToFit(ctx, s.previewCap)
	}
	return nil
}

// GetOrCreatePreview returns the cached blob or renders, stores and
// returns a fresh one via gen.
func (s *Store) GetOrCreatePreview(ctx context.Context, k PreviewKey, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := s.GetPreview(ctx, k); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.PutPreview(ctx, k, data); err != nil {
		// A failed cache write still yields a usable render.
		s.log.Warn("preview cache write failed", slog.String("font", k.FontID), slog.Any("err", err))
	}
	return data, nil
}

// EvictPreviewsToFit deletes least recently used rows until the total
// size is at most capBytes. Never-read rows go first.
func (s *Store) EvictPreviewsToFit(ctx context.Context, capBytes int64) error {
	total, err := s.TotalPreviewBytes(ctx)
	if err != nil {
		return err
	}
	if total <= capBytes {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT cache_key, size FROM previews ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END, last_access, updated_at`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []any
	cur := total
	for rows.Next() {
		var (
			key string
			sz  int64
		)
		if err := rows.Scan(&key, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, key)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// The single sqlite connection must be free before writing.
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM previews WHERE cache_key IN (`+placeholders(len(victims))+`)`), victims...); err != nil {
		return fmt.Errorf("evict previews: %w", err)
	}
	s.log.Debug("previews evicted", slog.Int("count", len(victims)), slog.Int64("bytes", total-cur))
	return nil
}

// TotalPreviewBytes sums the sizes of all cached previews.
func (s *Store) TotalPreviewBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM previews`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum previews size: %w", err)
	}
	return total, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// invalidatePreviews drops every cached preview of a font. Callers inside
// a transaction pass the tx; SQLite has a single connection.
func (s *Store) invalidatePreviews(ctx context.Context, ex execer, fontID string) error {
	if _, err := ex.ExecContext(ctx, s.q(`DELETE FROM previews WHERE font_id = ?`), fontID); err != nil {
		return fmt.Errorf("invalidate previews: %w", err)
	}
	return nil
}
