/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"tattoofonts/internal/domain"
	"tattoofonts/internal/textlayout"
	"tattoofonts/internal/vector"
)

// SpecimenEntry is one font on the specimen sheet.
type SpecimenEntry struct {
	Font domain.Font
	Data []byte
}

// SpecimenOptions controls the catalog specimen PDF. Units are mm and pt.
type SpecimenOptions struct {
	Title        string
	SampleText   string
	SampleSizePt float64
	Ink          vector.Color
}

const (
	specimenMargin = 15.0
	specimenPageH  = 297.0
	specimenTextW  = 210.0 - 2*specimenMargin
)

// WriteSpecimenPDF lays out an A4 catalog sheet: one block per font with
// its name, category and a sample line set in the font itself. Fonts
// gofpdf cannot embed (CFF outlines, WOFF) fall back to Helvetica.
func WriteSpecimenPDF(out io.Writer, entries []SpecimenEntry, opt SpecimenOptions) error {
	if opt.Title == "" {
		opt.Title = "Tattoo Fonts"
	}
	if strings.TrimSpace(opt.SampleText) == "" {
		opt.SampleText = textlayout.Placeholder
	}
	if opt.SampleSizePt <= 0 {
		opt.SampleSizePt = 28
	}
	if opt.Ink == (vector.Color{}) {
		opt.Ink = vector.Ink
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(opt.Title, true)
	pdf.SetAuthor("tattoofonts", true)
	pdf.SetMargins(specimenMargin, specimenMargin, specimenMargin)
	pdf.SetAutoPageBreak(true, specimenMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(specimenTextW, 12, tr(opt.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(specimenTextW, 6, fmt.Sprintf("%d font", len(entries)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	lineH := opt.SampleSizePt * 0.3528 * 1.3
	for i, e := range entries {
		if pdf.GetY()+lineH+16 > specimenPageH-specimenMargin {
			pdf.AddPage()
		}
		setDrawColor(pdf, vector.Color{R: 220, G: 220, B: 220, A: 255})
		y := pdf.GetY()
		pdf.Line(specimenMargin, y, specimenMargin+specimenTextW, y)
		pdf.Ln(2)

		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(40, 40, 40)
		header := e.Font.Name
		if e.Font.IsPremium {
			header += "  (Premium)"
		}
		pdf.CellFormat(specimenTextW*0.7, 6, tr(header), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(specimenTextW*0.3, 6, tr(e.Font.Category), "", 1, "R", false, 0, "")

		setTextColor(pdf, opt.Ink)
		family := fmt.Sprintf("tf%d", i)
		if embeddable(e) {
			pdf.AddUTF8FontFromBytes(family, "", e.Data)
			pdf.SetFont(family, "", opt.SampleSizePt)
			fitSample(pdf, opt.SampleText, opt.SampleSizePt)
			pdf.CellFormat(specimenTextW, lineH, opt.SampleText, "", 1, "L", false, 0, "")
		} else {
			pdf.SetFont("Helvetica", "", opt.SampleSizePt)
			fitSample(pdf, tr(opt.SampleText), opt.SampleSizePt)
			pdf.CellFormat(specimenTextW, lineH, tr(opt.SampleText), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}
	if err := pdf.Output(out); err != nil {
		return fmt.Errorf("write specimen pdf: %w", err)
	}
	return nil
}

// embeddable loads the font into a scratch document so a font gofpdf
// rejects does not poison the real one.
func embeddable(e SpecimenEntry) bool {
	if len(e.Data) == 0 {
		return false
	}
	if ext, _ := domain.FontExt("x." + e.Font.FileExt); ext != "ttf" {
		return false
	}
	if _, err := textlayout.ParseFont(e.Data); err != nil {
		return false
	}
	scratch := gofpdf.New("P", "mm", "A4", "")
	scratch.AddUTF8FontFromBytes("scratch", "", e.Data)
	return !scratch.Err()
}

// fitSample shrinks the current font until text fits the column.
func fitSample(pdf *gofpdf.Fpdf, text string, sizePt float64) {
	if w := pdf.GetStringWidth(text); w > specimenTextW {
		pdf.SetFontSize(max(6, sizePt*specimenTextW/w))
	}
}

func setDrawColor(pdf *gofpdf.Fpdf, c vector.Color) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setTextColor(pdf *gofpdf.Fpdf, c vector.Color) {
	pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
}
