/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"tattoofonts/internal/domain"
	"tattoofonts/internal/storage"
	"tattoofonts/internal/telemetry"
	"tattoofonts/internal/textlayout"
)

const maxPerPage = 100

// FontPage is the listing response of GET /api/fonts.
type FontPage struct {
	Categories []string      `json:"categories"`
	Fonts      []domain.Font `json:"fonts"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PerPage    int           `json:"perPage"`
	TotalPages int           `json:"totalPages"`
}

// pagination reads page and perPage; perPage=all disables paging.
func (s *Server) pagination(r *http.Request) (page, perPage int, all bool, err error) {
	q := r.URL.Query()
	page, perPage = 1, s.opts.PerPage
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, false, fmt.Errorf("%w: page must be a positive integer", errBadRequest)
		}
	}
	switch v := strings.ToLower(q.Get("perPage")); v {
	case "":
	case "all":
		return 1, 0, true, nil
	default:
		if perPage, err = strconv.Atoi(v); err != nil || perPage < 1 {
			return 0, 0, false, fmt.Errorf("%w: perPage must be a positive integer or \"all\"", errBadRequest)
		}
		perPage = min(perPage, maxPerPage)
	}
	return page, perPage, false, nil
}

func (s *Server) handleListFonts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fq := storage.FontQuery{
		Category: q.Get("category"),
		Search:   q.Get("q"),
	}
	if q.Get("all") == "1" {
		if !s.isAdmin(r) {
			writeError(w, http.StatusUnauthorized, errAdminRequired)
			return
		}
		fq.IncludeHidden = true
	}
	page, perPage, all, err := s.pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if q.Get("favorites") == "1" {
		fq.IDs = []string{}
		if v := s.visitorID(w, r, false); v != "" {
			if fq.IDs, err = s.store.ListFavorites(r.Context(), v); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
		}
	}
	if !all {
		fq.Limit = perPage
		fq.Offset = (page - 1) * perPage
	}
	cats, err := s.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	fonts, total, err := s.store.ListFonts(r.Context(), fq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := FontPage{Categories: cats, Fonts: fonts, Total: total, Page: page, PerPage: perPage, TotalPages: 1}
	if all {
		out.PerPage = total
	} else if total > 0 {
		out.TotalPages = int(math.Ceil(float64(total) / float64(perPage)))
	}
	writeJSON(w, http.StatusOK, out)
}

// visibleFont loads a font, hiding invisible ones from non-admins.
func (s *Server) visibleFont(r *http.Request, id string) (domain.Font, error) {
	f, err := s.store.GetFont(r.Context(), id)
	if err != nil {
		return domain.Font{}, err
	}
	if !f.Visible && !s.isAdmin(r) {
		return domain.Font{}, fmt.Errorf("font %s: %w", id, storage.ErrNotFound)
	}
	return f, nil
}

func (s *Server) handleGetFont(w http.ResponseWriter, r *http.Request) {
	f, err := s.visibleFont(r, r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleFontFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.visibleFont(r, id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	f, data, err := s.store.FontFile(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	name := f.OriginalFilename
	if name == "" {
		name = f.Name + "." + f.FileExt
	}
	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, name, f.UpdatedAt, bytes.NewReader(data))
}

// formBool parses an optional multipart boolean.
func formBool(r *http.Request, key string, def bool) (bool, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadRequest, key)
	}
	return b, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	l := s.log.With(slog.String("op", "upload"))
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: missing file", errBadRequest))
		return
	}
	defer file.Close()
	name := strings.TrimSpace(r.FormValue("name"))
	category := strings.TrimSpace(r.FormValue("category"))
	if name == "" || category == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: name and category are required", errBadRequest))
		return
	}
	ext, ok := domain.FontExt(hdr.Filename)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unsupported font type %q", errBadRequest, ext))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: empty font file", errBadRequest))
		return
	}
	if ext == "ttf" || ext == "otf" {
		if _, err := textlayout.ParseFont(data); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}
	nf := storage.NewFont{
		Name:             name,
		Category:         category,
		OriginalFilename: hdr.Filename,
		Ext:              ext,
		Data:             data,
	}
	for _, b := range []struct {
		key string
		def bool
		dst *bool
	}{
		{"isPremium", false, &nf.IsPremium},
		{"visible", true, &nf.Visible},
		{"supportsBold", true, &nf.SupportsBold},
		{"supportsItalic", true, &nf.SupportsItalic},
	} {
		if *b.dst, err = formBool(r, b.key, b.def); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	f, err := s.store.CreateFont(r.Context(), nf)
	if err != nil {
		l.ErrorContext(r.Context(), "create font failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	telemetry.FontUploaded(ext, int64(len(data)))
	l.InfoContext(r.Context(), "font uploaded", slog.String("id", f.ID), slog.String("ext", ext), slog.Int("size", len(data)))
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handlePatchFont(w http.ResponseWriter, r *http.Request) {
	var p domain.FontPatch
	if err := decodeJSON(w, r, schemaPatch, &p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	f, err := s.store.UpdateFont(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFont(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteFont(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.log.InfoContext(r.Context(), "font deleted", slog.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FontIDs  []string `json:"fontIds"`
		Category string   `json:"category"`
	}
	if err := decodeJSON(w, r, schemaReorder, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.Reorder(r.Context(), req.FontIDs, req.Category); err != nil {
		status := statusFor(err)
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": cats})
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, schemaCategory, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: name must not be blank", errBadRequest))
		return
	}
	name, err := s.store.AddCategory(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}

// --- favorites ---

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	ids := []string{}
	if v := s.visitorID(w, r, false); v != "" {
		got, err := s.store.ListFavorites(r.Context(), v)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		ids = append(ids, got...)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"fontIds": ids})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.visibleFont(r, id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := s.store.AddFavorite(r.Context(), s.visitorID(w, r, true), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	if v := s.visitorID(w, r, false); v != "" {
		if err := s.store.RemoveFavorite(r.Context(), v, r.PathValue("id")); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
