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
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/image/font/gofont/goregular"

	"tattoofonts/internal/domain"
	"tattoofonts/internal/storage"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, opts Options) (*Server, *storage.Store) {
	t.Helper()
	st, err := storage.Open(context.Background(), storage.Options{DSN: filepath.Join(t.TempDir(), "tf.db"), PreviewCacheMaxBytes: 1 << 24})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if opts.Secret == "" {
		opts.Secret = testSecret
	}
	if opts.AdminPassword == "" && opts.AdminHash == "" {
		opts.AdminPassword = "letmein"
	}
	opts.DataDir = t.TempDir()
	s, err := New(st, opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s, st
}

func seedFont(t *testing.T, st *storage.Store, name string, visible, premium bool) domain.Font {
	t.Helper()
	f, err := st.CreateFont(context.Background(), storage.NewFont{
		Name: name, Category: "Serif", Visible: visible, IsPremium: premium,
		SupportsBold: true, SupportsItalic: true,
		OriginalFilename: strings.ReplaceAll(name, " ", "") + ".ttf", Ext: "ttf", Data: goregular.TTF,
	})
	if err != nil {
		t.Fatalf("create font: %v", err)
	}
	return f
}

func adminBearer(t *testing.T) string {
	t.Helper()
	tok, err := signToken(testSecret, adminSubject, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + tok
}

func do(t *testing.T, s *Server, method, target string, body []byte, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndVersion(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	if rec := do(t, s, "GET", "/healthz", nil, nil); rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(t, s, "GET", "/readyz", nil, nil); rec.Code != 200 || rec.Body.String() != "ready schema=3" {
		t.Fatalf("readyz = %d %q", rec.Code, rec.Body.String())
	}
	rec := do(t, s, "GET", "/version", nil, nil)
	if rec.Code != 200 || rec.Body.Len() == 0 {
		t.Fatalf("version = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestNewRequiresSecret(t *testing.T) {
	st, err := storage.Open(context.Background(), storage.Options{DSN: filepath.Join(t.TempDir(), "tf.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()
	if _, err := New(st, Options{}); err == nil {
		t.Fatalf("expected error without secret")
	}
	if _, err := New(nil, Options{Secret: "x"}); err == nil {
		t.Fatalf("expected error without store")
	}
}

func TestTokenSignVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok, err := signToken("k", "admin", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sub, err := verifyToken("k", tok, now); err != nil || sub != "admin" {
		t.Fatalf("verify = %q, %v", sub, err)
	}
	if _, err := verifyToken("other", tok, now); err != errBadToken {
		t.Fatalf("wrong key = %v", err)
	}
	if _, err := verifyToken("k", tok, now.Add(2*time.Minute)); err != errTokenExpired {
		t.Fatalf("expired = %v", err)
	}
	if _, err := verifyToken("k", tok+"x", now); err != errBadToken {
		t.Fatalf("tampered = %v", err)
	}
	if _, err := verifyToken("k", "garbage", now); err != errBadToken {
		t.Fatalf("garbage = %v", err)
	}
}

func TestLoginFlow(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	if rec := do(t, s, "POST", "/api/admin/login", []byte(`{"password":"nope"}`), nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password = %d", rec.Code)
	}
	if rec := do(t, s, "POST", "/api/admin/login", []byte(`{"pass":"x"}`), nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body = %d", rec.Code)
	}
	rec := do(t, s, "POST", "/api/admin/login", []byte(`{"password":"letmein"}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rec.Code, rec.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == adminCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("admin cookie = %+v", cookie)
	}
	if cookie.MaxAge != int((8 * time.Hour).Seconds()) {
		t.Fatalf("cookie max age = %d", cookie.MaxAge)
	}
	body := decode[map[string]string](t, rec)
	if body["token"] != cookie.Value {
		t.Fatalf("token mismatch")
	}

	req := httptest.NewRequest("GET", "/api/admin/session", nil)
	req.AddCookie(cookie)
	srec := httptest.NewRecorder()
	s.Handler().ServeHTTP(srec, req)
	if !decode[map[string]bool](t, srec)["admin"] {
		t.Fatalf("session not recognised: %s", srec.Body.String())
	}

	out := do(t, s, "POST", "/api/admin/logout", nil, nil)
	if out.Code != http.StatusNoContent || len(out.Result().Cookies()) == 0 || out.Result().Cookies()[0].MaxAge >= 0 {
		t.Fatalf("logout should expire the cookie")
	}
}

func TestLoginBcryptAndDisabled(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	s, _ := newTestServer(t, Options{AdminHash: hash})
	if rec := do(t, s, "POST", "/api/admin/login", []byte(`{"password":"s3cret"}`), nil); rec.Code != http.StatusOK {
		t.Fatalf("bcrypt login = %d", rec.Code)
	}
	s.opts.AdminHash, s.opts.AdminPassword = "", ""
	if rec := do(t, s, "POST", "/api/admin/login", []byte(`{"password":"s3cret"}`), nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled login = %d", rec.Code)
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatalf("empty password should fail")
	}
}

func TestListFontsPagingAndVisibility(t *testing.T) {
	s, st := newTestServer(t, Options{})
	seedFont(t, st, "Alpha", true, false)
	seedFont(t, st, "Bravo", true, false)
	seedFont(t, st, "Charlie", true, false)
	seedFont(t, st, "Hidden", false, false)

	rec := do(t, s, "GET", "/api/fonts?perPage=2&page=2", nil, nil)
	page := decode[FontPage](t, rec)
	if page.Total != 3 || page.TotalPages != 2 || len(page.Fonts) != 1 || page.Fonts[0].Name != "Charlie" {
		t.Fatalf("page 2 = %+v", page)
	}
	if len(page.Categories) != 1 || page.Categories[0] != "Serif" {
		t.Fatalf("categories = %v", page.Categories)
	}

	page = decode[FontPage](t, do(t, s, "GET", "/api/fonts?perPage=all&q=RAV", nil, nil))
	if page.Total != 1 || page.Fonts[0].Name != "Bravo" || page.TotalPages != 1 {
		t.Fatalf("search = %+v", page)
	}

	if rec := do(t, s, "GET", "/api/fonts?all=1", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("all without admin = %d", rec.Code)
	}
	page = decode[FontPage](t, do(t, s, "GET", "/api/fonts?all=1", nil, map[string]string{"Authorization": adminBearer(t)}))
	if page.Total != 4 {
		t.Fatalf("admin total = %d", page.Total)
	}
	for _, bad := range []string{"page=0", "perPage=x", "page=-1"} {
		if rec := do(t, s, "GET", "/api/fonts?"+bad, nil, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s = %d", bad, rec.Code)
		}
	}
}

func TestGetFontHidesInvisible(t *testing.T) {
	s, st := newTestServer(t, Options{})
	hidden := seedFont(t, st, "Hidden", false, false)
	if rec := do(t, s, "GET", "/api/fonts/"+hidden.ID, nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("hidden font = %d", rec.Code)
	}
	if rec := do(t, s, "GET", "/api/fonts/file/"+hidden.ID, nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("hidden file = %d", rec.Code)
	}
	rec := do(t, s, "GET", "/api/fonts/"+hidden.ID, nil, map[string]string{"Authorization": adminBearer(t)})
	if rec.Code != http.StatusOK || decode[domain.Font](t, rec).Name != "Hidden" {
		t.Fatalf("admin get = %d", rec.Code)
	}
}

func multipartBody(t *testing.T, fields map[string]string, filename string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = fw.Write(data)
	}
	_ = mw.Close()
	return buf.Bytes(), mw.FormDataContentType()
}

func TestUploadAndServeFile(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	fields := map[string]string{"name": "Go Regular", "category": "Sans-Serif", "supportsItalic": "false"}
	body, ct := multipartBody(t, fields, "GoRegular.ttf", goregular.TTF)

	if rec := do(t, s, "POST", "/api/fonts/upload", body, map[string]string{"Content-Type": ct}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous upload = %d", rec.Code)
	}
	auth := adminBearer(t)
	rec := do(t, s, "POST", "/api/fonts/upload", body, map[string]string{"Content-Type": ct, "Authorization": auth})
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d %s", rec.Code, rec.Body.String())
	}
	f := decode[domain.Font](t, rec)
	if f.Name != "Go Regular" || f.Category != "Sans-Serif" || !f.Visible || f.IsPremium || !f.Supports.Bold || f.Supports.Italic {
		t.Fatalf("uploaded font = %+v", f)
	}
	if f.File != storage.FileURL(f.ID) || f.MimeType != "font/ttf" {
		t.Fatalf("file fields = %q %q", f.File, f.MimeType)
	}

	file := do(t, s, "GET", f.File, nil, nil)
	if file.Code != http.StatusOK || !bytes.Equal(file.Body.Bytes(), goregular.TTF) {
		t.Fatalf("file = %d, %d bytes", file.Code, file.Body.Len())
	}
	if cc := file.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Fatalf("cache control = %q", cc)
	}
	if cd := file.Header().Get("Content-Disposition"); !strings.Contains(cd, "GoRegular.ttf") {
		t.Fatalf("content disposition = %q", cd)
	}

	cases := []struct {
		name     string
		fields   map[string]string
		filename string
		data     []byte
	}{
		{"bad ext", fields, "x.exe", goregular.TTF},
		{"corrupt ttf", fields, "x.ttf", []byte("not a font")},
		{"missing file", fields, "", nil},
		{"missing name", map[string]string{"category": "Serif"}, "x.ttf", goregular.TTF},
		{"bad bool", map[string]string{"name": "n", "category": "c", "isPremium": "maybe"}, "x.ttf", goregular.TTF},
	}
	for _, tc := range cases {
		b, ct := multipartBody(t, tc.fields, tc.filename, tc.data)
		if rec := do(t, s, "POST", "/api/fonts/upload", b, map[string]string{"Content-Type": ct, "Authorization": auth}); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s = %d %s", tc.name, rec.Code, rec.Body.String())
		}
	}

	// woff is stored without parsing
	b, ct := multipartBody(t, map[string]string{"name": "Webby", "category": "Serif"}, "webby.woff", []byte("wOFF-data"))
	if rec := do(t, s, "POST", "/api/fonts/upload", b, map[string]string{"Content-Type": ct, "Authorization": auth}); rec.Code != http.StatusCreated {
		t.Fatalf("woff upload = %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadTooLarge(t *testing.T) {
	s, _ := newTestServer(t, Options{MaxUploadBytes: 1024})
	body, ct := multipartBody(t, map[string]string{"name": "n", "category": "c"}, "big.ttf", goregular.TTF)
	rec := do(t, s, "POST", "/api/fonts/upload", body, map[string]string{"Content-Type": ct, "Authorization": adminBearer(t)})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized upload = %d", rec.Code)
	}
}

func TestPatchReorderDelete(t *testing.T) {
	s, st := newTestServer(t, Options{})
	a := seedFont(t, st, "Alpha", true, false)
	b := seedFont(t, st, "Bravo", true, false)
	auth := map[string]string{"Authorization": adminBearer(t)}

	if rec := do(t, s, "PATCH", "/api/fonts/"+a.ID, []byte(`{"name":"A"}`), nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous patch = %d", rec.Code)
	}
	for _, body := range []string{`{}`, `{"color":"red"}`, `{"rating":9}`, `{"name":"  "}`, `not json`} {
		if rec := do(t, s, "PATCH", "/api/fonts/"+a.ID, []byte(body), auth); rec.Code != http.StatusBadRequest {
			t.Fatalf("patch %s = %d", body, rec.Code)
		}
	}
	rec := do(t, s, "PATCH", "/api/fonts/"+a.ID, []byte(`{"category":"Gotico","isPremium":true,"rating":4.5}`), auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch = %d %s", rec.Code, rec.Body.String())
	}
	f := decode[domain.Font](t, rec)
	if f.Category != "Gotico" || !f.IsPremium || f.Rating == nil || *f.Rating != 4.5 {
		t.Fatalf("patched = %+v", f)
	}
	if rec := do(t, s, "PATCH", "/api/fonts/ghost", []byte(`{"name":"x"}`), auth); rec.Code != http.StatusNotFound {
		t.Fatalf("patch ghost = %d", rec.Code)
	}

	rec = do(t, s, "POST", "/api/fonts/reorder", []byte(`{"fontIds":["`+b.ID+`","`+a.ID+`"]}`), auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("reorder = %d %s", rec.Code, rec.Body.String())
	}
	page := decode[FontPage](t, do(t, s, "GET", "/api/fonts", nil, nil))
	if page.Fonts[0].ID != b.ID || *page.Fonts[0].SortOrder != 1 {
		t.Fatalf("order after reorder = %+v", page.Fonts)
	}
	if rec := do(t, s, "POST", "/api/fonts/reorder", []byte(`{"fontIds":["`+a.ID+`","`+a.ID+`"]}`), auth); rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate ids = %d", rec.Code)
	}
	if rec := do(t, s, "POST", "/api/fonts/reorder", []byte(`{"fontIds":["ghost"]}`), auth); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown id = %d", rec.Code)
	}

	if rec := do(t, s, "DELETE", "/api/fonts/"+a.ID, nil, auth); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	if rec := do(t, s, "DELETE", "/api/fonts/"+a.ID, nil, auth); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", rec.Code)
	}
}

func TestCategories(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	auth := map[string]string{"Authorization": adminBearer(t)}
	if rec := do(t, s, "POST", "/api/categories", []byte(`{"name":"Gotico"}`), nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous add = %d", rec.Code)
	}
	if rec := do(t, s, "POST", "/api/categories", []byte(`{"name":"Gotico"}`), auth); rec.Code != http.StatusCreated {
		t.Fatalf("add = %d", rec.Code)
	}
	rec := do(t, s, "POST", "/api/categories", []byte(`{"name":"GOTICO"}`), auth)
	if got := decode[map[string]string](t, rec)["name"]; got != "Gotico" {
		t.Fatalf("dedupe returned %q", got)
	}
	cats := decode[map[string][]string](t, do(t, s, "GET", "/api/categories", nil, nil))["categories"]
	if len(cats) != 1 {
		t.Fatalf("categories = %v", cats)
	}
}

func TestFavoritesByVisitorCookie(t *testing.T) {
	s, st := newTestServer(t, Options{})
	a := seedFont(t, st, "Alpha", true, false)
	seedFont(t, st, "Bravo", true, false)

	rec := do(t, s, "PUT", "/api/favorites/"+a.ID, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("add favorite = %d %s", rec.Code, rec.Body.String())
	}
	var visitor *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == visitorCookie {
			visitor = c
		}
	}
	if visitor == nil {
		t.Fatalf("visitor cookie not issued")
	}
	withCookie := func(method, target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, nil)
		req.AddCookie(visitor)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}
	ids := decode[map[string][]string](t, withCookie("GET", "/api/favorites"))["fontIds"]
	if len(ids) != 1 || ids[0] != a.ID {
		t.Fatalf("favorites = %v", ids)
	}
	page := decode[FontPage](t, withCookie("GET", "/api/fonts?favorites=1"))
	if page.Total != 1 || page.Fonts[0].ID != a.ID {
		t.Fatalf("favorite listing = %+v", page)
	}
	// no cookie: empty favorites listing
	if page := decode[FontPage](t, do(t, s, "GET", "/api/fonts?favorites=1", nil, nil)); page.Total != 0 || len(page.Fonts) != 0 {
		t.Fatalf("anonymous favorites = %+v", page)
	}
	if rec := withCookie("DELETE", "/api/favorites/"+a.ID); rec.Code != http.StatusNoContent {
		t.Fatalf("remove = %d", rec.Code)
	}
	if ids := decode[map[string][]string](t, withCookie("GET", "/api/favorites"))["fontIds"]; len(ids) != 0 {
		t.Fatalf("favorites after remove = %v", ids)
	}
	if rec := do(t, s, "PUT", "/api/favorites/ghost", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("favorite ghost = %d", rec.Code)
	}
}
