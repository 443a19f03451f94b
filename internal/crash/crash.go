/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns panics into crash reports: fatal in the CLI,
// a 500 response in the HTTP server.
package crash

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	applog "tattoofonts/internal/log"
	"tattoofonts/internal/telemetry"
	"tattoofonts/internal/version"
)

// ReportsDirName is the sub directory of the data dir holding reports.
const ReportsDirName = "crash"

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// seq keeps report names unique within one second.
var seq atomic.Uint64

// Recover captures a panic, logs it with its stack, writes a report under
// dataDir (the temp dir when empty) and exits with code 2.
//
// Usage: defer crash.Recover(dataDir)
func Recover(dataDir string) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, err := writeReport(dataDir, r, stack, "")
		if err != nil {
			l.Error("crash report not written", slog.Any("err", err))
		}
		_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
		_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
		exitFn(2)
	}
}

// Middleware recovers handler panics: the request gets a JSON 500 and a
// report is written. http.ErrAbortHandler is re-panicked as net/http expects.
func Middleware(dataDir string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			stack := debug.Stack()
			l := applog.WithComponent("crash")
			l.ErrorContext(r.Context(), "handler panic", slog.Any("panic", rec), slog.String("stack", string(stack)))
			route := r.Method + " " + r.URL.Path
			if path, err := writeReport(dataDir, rec, stack, route); err != nil {
				l.Error("crash report not written", slog.Any("err", err))
			} else {
				l.Info("crash report written", slog.String("path", path))
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error", "requestId": applog.RequestID(r.Context())})
		}()
		next.ServeHTTP(w, r)
	})
}

func writeReport(dataDir string, panicVal any, stack []byte, route string) (string, error) {
	dir := os.TempDir()
	if dataDir != "" {
		dir = filepath.Join(dataDir, ReportsDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s-%d.log", now.Format("20060102-150405"), seq.Add(1)))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "tattoofonts crash report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if route != "" {
		_, _ = fmt.Fprintf(&buf, "Route: %s\n", route)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
