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
	"errors"
	"fmt"
	"strings"
)

// AddFavorite marks a font as favorite for a visitor. Repeated calls are no-ops.
func (s *Store) AddFavorite(ctx context.Context, visitor, fontID string) error {
	if strings.TrimSpace(visitor) == "" {
		return errors.New("visitor id is required")
	}
	if _, err := s.GetFont(ctx, fontID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO favorites(visitor_id, font_id, created_at) VALUES(?, ?, ?)
		ON CONFLICT(visitor_id, font_id) DO NOTHING`), visitor, fontID, formatTS(s.now()))
	if err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite unmarks a font. Removing an absent favorite is not an error.
func (s *Store) RemoveFavorite(ctx context.Context, visitor, fontID string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM favorites WHERE visitor_id = ? AND font_id = ?`), visitor, fontID)
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

// ListFavorites returns the visitor's favorite font ids, oldest first.
func (s *Store) ListFavorites(ctx context.Context, visitor string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT font_id FROM favorites WHERE visitor_id = ? ORDER BY created_at, font_id`), visitor)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
