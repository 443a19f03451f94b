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
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tattoofonts/internal/domain"
	"tattoofonts/internal/textlayout"
)

// Client talks to a running tattoofonts server. It is used by the CLI.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL, token string, timeout time.Duration, insecureTLS bool) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	if insecureTLS {
		hc.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec // opt-in for self-signed dev servers
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  hc,
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server: %d %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(b, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(b))
		}
		if e.Error == "" {
			e.Error = resp.Status
		}
		return nil, &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, dest any) error {
	var (
		body io.Reader
		ct   string
	)
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body, ct = bytes.NewReader(b), "application/json"
	}
	resp, err := c.do(ctx, method, path, ct, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Login exchanges the admin password for a session token and keeps it.
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/admin/login", map[string]string{"password": password}, &out); err != nil {
		return "", err
	}
	c.Token = out.Token
	return out.Token, nil
}

// ListOptions filter ListFonts.
type ListOptions struct {
	Category string
	Query    string
	Page     int
	PerPage  int // 0 = server default, -1 = all
	All      bool
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Category != "" {
		v.Set("category", o.Category)
	}
	if o.Query != "" {
		v.Set("q", o.Query)
	}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	switch {
	case o.PerPage < 0:
		v.Set("perPage", "all")
	case o.PerPage > 0:
		v.Set("perPage", strconv.Itoa(o.PerPage))
	}
	if o.All {
		v.Set("all", "1")
	}
	return v
}

// ListFonts returns one page of the catalog.
func (c *Client) ListFonts(ctx context.Context, o ListOptions) (*FontPage, error) {
	var page FontPage
	path := "/api/fonts"
	if q := o.values().Encode(); q != "" {
		path += "?" + q
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetFont fetches one font's metadata.
func (c *Client) GetFont(ctx context.Context, id string) (*domain.Font, error) {
	var f domain.Font
	if err := c.doJSON(ctx, http.MethodGet, "/api/fonts/"+url.PathEscape(id), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Layout computes a layout on the server.
func (c *Client) Layout(ctx context.Context, req textlayout.LayoutRequest) (*textlayout.LayoutResult, error) {
	var res textlayout.LayoutResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/preview/layout", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// settingsQuery is the inverse of SettingsFromQuery.
func settingsQuery(s domain.PreviewSettings) url.Values {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	v := url.Values{}
	v.Set("text", s.Text)
	v.Set("size", f(s.FontSizePx))
	v.Set("spacing", f(s.LetterSpacing))
	v.Set("color", s.Color)
	v.Set("bold", strconv.FormatBool(s.Bold))
	v.Set("italic", strconv.FormatBool(s.Italic))
	v.Set("mode", string(s.CurveMode))
	v.Set("curve", f(s.Curve))
	v.Set("radius", f(s.CircleRadius))
	v.Set("start", f(s.CircleStart))
	v.Set("inward", strconv.FormatBool(s.Inward))
	return v
}

// DownloadPreview streams a rendered preview into w and returns the file
// name suggested by the server.
func (c *Client) DownloadPreview(ctx context.Context, id, format string, s domain.PreviewSettings, ratio float64, w io.Writer) (string, error) {
	q := settingsQuery(s)
	q.Set("download", "1")
	if ratio > 0 {
		q.Set("ratio", strconv.FormatFloat(ratio, 'g', -1, 64))
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/preview/"+url.PathEscape(id)+"/"+url.PathEscape(format)+"?"+q.Encode(), "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", err
	}
	name := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}
	return name, nil
}

// UploadFont uploads one font file with its catalog metadata.
func (c *Client) UploadFont(ctx context.Context, filename string, data []byte, name, category string, premium bool, supports domain.Supports) (*domain.Font, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"name":           name,
		"category":       category,
		"isPremium":      strconv.FormatBool(premium),
		"supportsBold":   strconv.FormatBool(supports.Bold),
		"supportsItalic": strconv.FormatBool(supports.Italic),
	} {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/fonts/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var f domain.Font
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}
