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
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"tattoofonts/internal/domain"
	"tattoofonts/internal/textlayout"
)

func TestLayoutEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := do(t, s, "POST", "/api/preview/layout", []byte(`{"text":"Anteprima","fontSizePx":56,"mode":"arc","curveStrength":50}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("layout = %d %s", rec.Code, rec.Body.String())
	}
	res := decode[textlayout.LayoutResult](t, rec)
	if res.Mode != textlayout.Arc || !res.Curved || res.ViewBoxWidth != 526.4 || res.ViewBoxHeight != 342.5 {
		t.Fatalf("arc layout = %+v", res)
	}
	if !strings.HasPrefix(res.PathDefinition, "M ") {
		t.Fatalf("path = %q", res.PathDefinition)
	}
	res = decode[textlayout.LayoutResult](t, do(t, s, "POST", "/api/preview/layout", []byte(`{"mode":"circle","circleRadiusPx":220,"fontSizePx":56}`), nil))
	if res.ViewBoxWidth != 664 || res.ViewBoxHeight != 664 || res.Transform == "" {
		t.Fatalf("circle layout = %+v", res)
	}
	if rec := do(t, s, "POST", "/api/preview/layout", []byte(`{"mode":"spiral"}`), nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad mode = %d", rec.Code)
	}
}

func TestSettingsFromQuery(t *testing.T) {
	q := url.Values{
		"text": {"Mamma"}, "size": {"500"}, "spacing": {"3"}, "color": {"#ff0000"},
		"bold": {"true"}, "mode": {"CIRCLE"}, "radius": {"10"}, "start": {"-90"}, "inward": {"1"},
	}
	s, err := SettingsFromQuery(q, domain.DefaultPreviewSettings())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Text != "Mamma" || s.FontSizePx != domain.MaxFontSizePx || s.LetterSpacing != 3 || !s.Bold || s.Italic {
		t.Fatalf("settings = %+v", s)
	}
	if s.CurveMode != domain.CurveCircle || s.CircleRadius != domain.MinCircleRadius || s.CircleStart != 270 || !s.Inward {
		t.Fatalf("circle settings = %+v", s)
	}
	if _, err := SettingsFromQuery(url.Values{"size": {"big"}}, domain.DefaultPreviewSettings()); !errors.Is(err, errBadRequest) {
		t.Fatalf("bad size = %v", err)
	}
	if _, err := SettingsFromQuery(url.Values{"italic": {"perhaps"}}, domain.DefaultPreviewSettings()); !errors.Is(err, errBadRequest) {
		t.Fatalf("bad bool = %v", err)
	}
	// round trip through the client encoder
	back, err := SettingsFromQuery(settingsQuery(s), domain.DefaultPreviewSettings())
	if err != nil || back != s {
		t.Fatalf("round trip = %+v, %v", back, err)
	}
}

func TestPreviewDownloads(t *testing.T) {
	s, st := newTestServer(t, Options{PixelRatio: 1})
	f := seedFont(t, st, "Old School", true, false)
	base := "/api/preview/" + f.ID

	rec := do(t, s, "GET", base+"/png?text=Love&download=1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("png = %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("not a png")
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, "Old_School_preview.png") {
		t.Fatalf("disposition = %q", cd)
	}
	n, err := st.TotalPreviewBytes(context.Background())
	if err != nil || n != int64(rec.Body.Len()) {
		t.Fatalf("cached bytes = %d, %v; want %d", n, err, rec.Body.Len())
	}
	again := do(t, s, "GET", base+"/png?text=Love", nil, nil)
	if !bytes.Equal(again.Body.Bytes(), rec.Body.Bytes()) {
		t.Fatalf("cached png differs")
	}
	if n2, _ := st.TotalPreviewBytes(context.Background()); n2 != n {
		t.Fatalf("second request grew the cache: %d -> %d", n, n2)
	}

	svg := do(t, s, "GET", base+"/svg?text=Love&mode=circle", nil, nil)
	if svg.Code != http.StatusOK || !strings.Contains(svg.Body.String(), "<textPath") {
		t.Fatalf("svg = %d %s", svg.Code, svg.Body.String())
	}
	if cd := svg.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "inline") {
		t.Fatalf("svg disposition = %q", cd)
	}
	pdf := do(t, s, "GET", base+"/pdf?text=Love&mode=arc&curve=40", nil, nil)
	if pdf.Code != http.StatusOK || !bytes.HasPrefix(pdf.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("pdf = %d", pdf.Code)
	}

	for target, want := range map[string]int{
		base + "/gif":                 http.StatusBadRequest,
		base + "/png?size=x":          http.StatusBadRequest,
		base + "/png?ratio=-1":        http.StatusBadRequest,
		base + "/png?color=notacolor": http.StatusBadRequest,
		"/api/preview/ghost/png":      http.StatusNotFound,
	} {
		if rec := do(t, s, "GET", target, nil, nil); rec.Code != want {
			t.Fatalf("%s = %d, want %d", target, rec.Code, want)
		}
	}
}

func TestPreviewPremiumAndHidden(t *testing.T) {
	s, st := newTestServer(t, Options{})
	premium := seedFont(t, st, "Gold", true, true)
	hidden := seedFont(t, st, "Secret", false, false)
	rec := do(t, s, "GET", "/api/preview/"+premium.ID+"/svg", nil, nil)
	if rec.Code != http.StatusForbidden || decode[map[string]string](t, rec)["error"] != errPremiumDownload.Error() {
		t.Fatalf("premium = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, s, "GET", "/api/preview/"+hidden.ID+"/svg", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("hidden = %d", rec.Code)
	}
	auth := map[string]string{"Authorization": adminBearer(t)}
	if rec := do(t, s, "GET", "/api/preview/"+premium.ID+"/svg", nil, auth); rec.Code != http.StatusOK {
		t.Fatalf("admin premium = %d", rec.Code)
	}
}

func TestClientAgainstServer(t *testing.T) {
	s, st := newTestServer(t, Options{PixelRatio: 1})
	seedFont(t, st, "Alpha", true, false)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	ctx := context.Background()

	c := NewClient(ts.URL+"/", "", 0, false)
	page, err := c.ListFonts(ctx, ListOptions{PerPage: -1})
	if err != nil || page.Total != 1 {
		t.Fatalf("list = %+v, %v", page, err)
	}
	if _, err := c.ListFonts(ctx, ListOptions{All: true}); err == nil {
		t.Fatalf("all without login should fail")
	} else {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
			t.Fatalf("err = %v", err)
		}
	}
	if _, err := c.Login(ctx, "letmein"); err != nil || c.Token == "" {
		t.Fatalf("login: %v", err)
	}
	up, err := c.UploadFont(ctx, "go.ttf", goregular.TTF, "Go", "Sans-Serif", false, domain.Supports{Bold: true})
	if err != nil || up.Name != "Go" || up.Supports.Italic {
		t.Fatalf("upload = %+v, %v", up, err)
	}
	got, err := c.GetFont(ctx, up.ID)
	if err != nil || got.ID != up.ID {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if _, err := c.GetFont(ctx, "ghost"); err == nil {
		t.Fatalf("expected not found")
	}
	res, err := c.Layout(ctx, textlayout.LayoutRequest{Text: "Hi", FontSizePx: 56, Mode: textlayout.Circle, CircleRadiusPx: 220})
	if err != nil || res.ViewBoxWidth != 664 {
		t.Fatalf("layout = %+v, %v", res, err)
	}
	settings := domain.DefaultPreviewSettings()
	settings.Text = "Hi"
	var buf bytes.Buffer
	name, err := c.DownloadPreview(ctx, up.ID, "svg", settings, 0, &buf)
	if err != nil || name != "Go_preview.svg" || !strings.Contains(buf.String(), "<svg") {
		t.Fatalf("download = %q, %v", name, err)
	}
}
