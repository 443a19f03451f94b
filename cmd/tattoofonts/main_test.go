/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"flag"
	"testing"

	"tattoofonts/internal/domain"
)

func TestSettingsFlags(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	s := domain.DefaultPreviewSettings()
	mode := settingsFlags(fs, &s)
	err := fs.Parse([]string{"-text", "Mamma", "-mode", "circle", "-radius", "300", "-start", "-45", "-inward", "-color", "#aa0000"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s.CurveMode = domain.CurveMode(*mode)
	s = s.Normalize()
	if s.Text != "Mamma" || s.CurveMode != domain.CurveCircle || s.CircleRadius != 300 || !s.Inward || s.Color != "#aa0000" {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if s.CircleStart != 315 {
		t.Fatalf("rotation not normalised: %v", s.CircleStart)
	}
}

func TestSettingsFlagsKeepDefaults(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	def := domain.DefaultPreviewSettings()
	s := def
	mode := settingsFlags(fs, &s)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	s.CurveMode = domain.CurveMode(*mode)
	if s != def {
		t.Fatalf("defaults changed: %+v", s)
	}
}
