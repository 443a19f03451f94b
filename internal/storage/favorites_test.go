/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"tattoofonts/internal/domain"
)

func TestFavorites(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()
	a := addFont(t, s, "A", "Serif", true)
	b := addFont(t, s, "B", "Serif", true)

	for _, id := range []string{b.ID, a.ID, b.ID} {
		if err := s.AddFavorite(ctx, "visitor", id); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	favs, err := s.ListFavorites(ctx, "visitor")
	if err != nil || len(favs) != 2 || favs[0] != b.ID || favs[1] != a.ID {
		t.Fatalf("favorites = %v, %v", favs, err)
	}
	if other, _ := s.ListFavorites(ctx, "someone-else"); len(other) != 0 {
		t.Fatalf("favorites leaked across visitors: %v", other)
	}
	if err := s.RemoveFavorite(ctx, "visitor", b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.RemoveFavorite(ctx, "visitor", b.ID); err != nil {
		t.Fatalf("remove twice: %v", err)
	}
	favs, _ = s.ListFavorites(ctx, "visitor")
	if len(favs) != 1 || favs[0] != a.ID {
		t.Fatalf("after remove = %v", favs)
	}
	if err := s.AddFavorite(ctx, "visitor", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown font = %v", err)
	}
	if err := s.AddFavorite(ctx, " ", a.ID); err == nil {
		t.Fatalf("expected error for empty visitor")
	}
}

func TestPreviewCacheRoundtripAndEviction(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	f := addFont(t, s, "A", "Serif", true)
	k1 := PreviewKey{FontID: f.ID, Kind: "png", W: 10, H: 10, Settings: "one"}
	k2 := PreviewKey{FontID: f.ID, Kind: "png", W: 10, H: 10, Settings: "two"}
	k3 := PreviewKey{FontID: f.ID, Kind: "png", W: 10, H: 10, Settings: "three"}

	if b, err := s.GetPreview(ctx, k1); err != nil || b != nil {
		t.Fatalf("miss = %v, %v", b, err)
	}
	if err := s.PutPreview(ctx, k1, []byte("1111")); err != nil {
		t.Fatalf("put1: %v", err)
	}
	if err := s.PutPreview(ctx, k2, []byte("2222")); err != nil {
		t.Fatalf("put2: %v", err)
	}
	// Touch k1 so k2 becomes the least recently used.
	if b, _ := s.GetPreview(ctx, k1); !bytes.Equal(b, []byte("1111")) {
		t.Fatalf("get1 = %q", b)
	}
	if err := s.PutPreview(ctx, k3, []byte("3333")); err != nil {
		t.Fatalf("put3: %v", err)
	}
	if b, _ := s.GetPreview(ctx, k2); b != nil {
		t.Fatalf("k2 should have been evicted")
	}
	if b, _ := s.GetPreview(ctx, k1); b == nil {
		t.Fatalf("k1 should survive eviction")
	}
	if total, _ := s.TotalPreviewBytes(ctx); total > 10 {
		t.Fatalf("cache over cap: %d", total)
	}

	// Upsert replaces in place.
	if err := s.PutPreview(ctx, k1, []byte("11")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if b, _ := s.GetPreview(ctx, k1); string(b) != "11" {
		t.Fatalf("upsert not applied: %q", b)
	}
	if err := s.PutPreview(ctx, PreviewKey{Kind: "png"}, []byte("x")); err == nil {
		t.Fatalf("expected error without font id")
	}
}

func TestGetOrCreatePreview(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()
	f := addFont(t, s, "A", "Serif", true)
	k := PreviewKey{FontID: f.ID, Kind: "svg", Settings: "s"}
	calls := 0
	gen := func(context.Context) ([]byte, error) {
		calls++
		return []byte("<svg/>"), nil
	}
	for range 3 {
		b, err := s.GetOrCreatePreview(ctx, k, gen)
		if err != nil || string(b) != "<svg/>" {
			t.Fatalf("GetOrCreate = %q, %v", b, err)
		}
	}
	if calls != 1 {
		t.Fatalf("generator called %d times, want 1", calls)
	}
	boom := errors.New("boom")
	if _, err := s.GetOrCreatePreview(ctx, PreviewKey{FontID: f.ID, Kind: "png"}, func(context.Context) ([]byte, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("generator error not propagated: %v", err)
	}
	name := "A Renamed"
	if _, err := s.UpdateFont(ctx, f.ID, domain.FontPatch{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if b, _ := s.GetPreview(ctx, k); b != nil {
		t.Fatalf("update left a stale preview behind")
	}
	if _, err := s.GetOrCreatePreview(ctx, k, gen); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if err := s.DeleteFont(ctx, f.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := s.TotalPreviewBytes(ctx); n != 0 {
		t.Fatalf("delete left %d preview bytes", n)
	}
}
