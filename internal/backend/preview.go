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
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tattoofonts/internal/domain"
	"tattoofonts/internal/export"
	"tattoofonts/internal/storage"
	"tattoofonts/internal/telemetry"
	"tattoofonts/internal/textlayout"
)

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var req textlayout.LayoutRequest
	if err := decodeJSON(w, r, schemaLayout, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, textlayout.ComputeLayout(req))
}

// SettingsFromQuery reads preview card settings from URL parameters,
// starting from def. Unknown parameters are ignored.
func SettingsFromQuery(q url.Values, def domain.PreviewSettings) (domain.PreviewSettings, error) {
	s := def
	if v, ok := q["text"]; ok {
		s.Text = v[0]
	}
	if v := q.Get("color"); v != "" {
		s.Color = v
	}
	if v := q.Get("mode"); v != "" {
		s.CurveMode = domain.CurveMode(strings.ToLower(v))
	}
	floats := []struct {
		key string
		dst *float64
	}{
		{"size", &s.FontSizePx},
		{"spacing", &s.LetterSpacing},
		{"curve", &s.Curve},
		{"radius", &s.CircleRadius},
		{"start", &s.CircleStart},
	}
	for _, f := range floats {
		v := q.Get(f.key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return s, fmt.Errorf("%w: %s must be a number", errBadRequest, f.key)
		}
		*f.dst = n
	}
	bools := []struct {
		key string
		dst *bool
	}{
		{"bold", &s.Bold},
		{"italic", &s.Italic},
		{"inward", &s.Inward},
	}
	for _, b := range bools {
		v := q.Get(b.key)
		if v == "" {
			continue
		}
		x, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("%w: %s must be a boolean", errBadRequest, b.key)
		}
		*b.dst = x
	}
	return s.Normalize(), nil
}

// defaultSettings applies configured preview defaults.
func (s *Server) defaultSettings() domain.PreviewSettings {
	d := domain.DefaultPreviewSettings()
	if s.opts.DefaultSizePx > 0 {
		d.FontSizePx = s.opts.DefaultSizePx
	}
	if s.opts.DefaultColor != "" {
		d.Color = s.opts.DefaultColor
	}
	return d
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format, err := export.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	settings, err := SettingsFromQuery(q, s.defaultSettings())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ratio := s.opts.PixelRatio
	if v := q.Get("ratio"); v != "" {
		if ratio, err = strconv.ParseFloat(v, 64); err != nil || ratio <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: ratio must be a positive number", errBadRequest))
			return
		}
	}

	id := r.PathValue("id")
	admin := s.isAdmin(r)
	f, data, err := s.store.FontFile(ctx, id)
	if err == nil && !f.Visible && !admin {
		err = fmt.Errorf("font %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if f.IsPremium && !admin {
		writeError(w, http.StatusForbidden, errPremiumDownload)
		return
	}
	p, err := export.NewPreview(f, data, settings)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	var (
		out    []byte
		cached = true
	)
	render := func(context.Context) ([]byte, error) {
		cached = false
		var buf bytes.Buffer
		if err := export.Render(&buf, p, format, export.PresetWeb, ratio); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if format == export.FormatPNG {
		pw, ph, eff := export.RasterSize(p, export.PNGOptions{PixelRatio: ratio})
		key := storage.PreviewKey{
			FontID:   f.ID,
			Kind:     string(format),
			W:        pw,
			H:        ph,
			Settings: p.Settings.CacheKey(f.ID, string(format)) + "|" + strconv.FormatFloat(eff, 'g', -1, 64),
		}
		out, err = s.store.GetOrCreatePreview(ctx, key, render)
	} else {
		out, err = render(ctx)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "render preview failed", slog.String("font", f.ID), slog.String("format", string(format)), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	disposition := "inline"
	if q.Get("download") == "1" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": p.FileName(string(format))}))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
	telemetry.PreviewExported(string(format), p.Layout.Mode.String(), cached)
}
