//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"tattoofonts/internal/crash"
	"tattoofonts/internal/domain"
	"tattoofonts/internal/export"
	applog "tattoofonts/internal/log"
	"tattoofonts/internal/storage"
	"tattoofonts/internal/undo"
	"tattoofonts/internal/vector"
	"tattoofonts/internal/version"
)

// Run opens the catalog and shows the desktop preview window until it is
// closed.
func Run(opts Options) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")
	defer crash.Recover(opts.DataDir)

	ctx := context.Background()
	st, err := storage.Open(ctx, opts.Store)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = st.Close() }()
	fonts, _, err := st.ListFonts(ctx, storage.FontQuery{IncludeHidden: true})
	if err != nil {
		return fmt.Errorf("list fonts: %w", err)
	}

	fyneApp := app.NewWithID("tattoofonts")
	w := fyneApp.NewWindow("Tattoo Fonts " + version.String())
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1100), 800)
	winH := max(prefs.IntWithFallback("window.height", 720), 560)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	ed := NewEditor(st, undo.NewManager(undo.Config{
		MaxBytes:    4 * 1024 * 1024,
		MaxPerFont:  100,
		MinInterval: 400 * time.Millisecond,
	}), opts.Defaults)

	status := widget.NewLabel("Ready")
	preview := canvas.NewImageFromImage(nil)
	preview.FillMode = canvas.ImageFillContain
	preview.SetMinSize(fyne.NewSize(640, 420))
	bg := canvas.NewRectangle(color.White)

	// guards widget callbacks while controls are synced from the editor
	syncing := false
	var syncControls func()

	redraw := func() {
		if ed.Font().ID == "" {
			return
		}
		img, err := ed.Render(1)
		if err != nil {
			status.SetText(err.Error())
			return
		}
		preview.Image = img
		preview.Refresh()
		s := ed.Settings()
		status.SetText(fmt.Sprintf("%s  |  %s  |  %.0f px", ed.Font().Name, s.CurveMode, s.FontSizePx))
	}
	update := func(fn func(*domain.PreviewSettings)) {
		if syncing {
			return
		}
		if ed.Update(fn) {
			redraw()
		}
	}

	textEntry := widget.NewEntry()
	textEntry.SetPlaceHolder("Type your tattoo text")
	textEntry.OnChanged = func(v string) { update(func(s *domain.PreviewSettings) { s.Text = v }) }

	sizeSlider := widget.NewSlider(domain.MinFontSizePx, domain.MaxFontSizePx)
	sizeSlider.OnChanged = func(v float64) { update(func(s *domain.PreviewSettings) { s.FontSizePx = v }) }
	spacingSlider := widget.NewSlider(domain.MinLetterSpacing, domain.MaxLetterSpacing)
	spacingSlider.Step = 0.5
	spacingSlider.OnChanged = func(v float64) { update(func(s *domain.PreviewSettings) { s.LetterSpacing = v }) }

	colorEntry := widget.NewEntry()
	colorEntry.OnSubmitted = func(v string) {
		if _, err := vector.ParseHex(v); err != nil {
			dialog.ShowError(err, w)
			return
		}
		update(func(s *domain.PreviewSettings) { s.Color = v })
	}

	boldCheck := widget.NewCheck("Bold", func(v bool) { update(func(s *domain.PreviewSettings) { s.Bold = v }) })
	italicCheck := widget.NewCheck("Italic", func(v bool) { update(func(s *domain.PreviewSettings) { s.Italic = v }) })

	curveSlider := widget.NewSlider(-100, 100)
	curveSlider.OnChanged = func(v float64) { update(func(s *domain.PreviewSettings) { s.Curve = v }) }
	radiusSlider := widget.NewSlider(domain.MinCircleRadius, domain.MaxCircleRadius)
	radiusSlider.OnChanged = func(v float64) { update(func(s *domain.PreviewSettings) { s.CircleRadius = v }) }
	startSlider := widget.NewSlider(0, 359)
	startSlider.OnChanged = func(v float64) { update(func(s *domain.PreviewSettings) { s.CircleStart = v }) }
	inwardCheck := widget.NewCheck("Letters inward", func(v bool) { update(func(s *domain.PreviewSettings) { s.Inward = v }) })

	arcBox := container.NewVBox(widget.NewLabel("Curve"), curveSlider)
	circleBox := container.NewVBox(widget.NewLabel("Radius"), radiusSlider, widget.NewLabel("Start angle"), startSlider, inwardCheck)
	modeRadio := widget.NewRadioGroup([]string{string(domain.CurveNone), string(domain.CurveArc), string(domain.CurveCircle)}, func(v string) {
		update(func(s *domain.PreviewSettings) { s.CurveMode = domain.CurveMode(v) })
		syncControls()
	})
	modeRadio.Horizontal = true

	syncControls = func() {
		syncing = true
		defer func() { syncing = false }()
		s := ed.Settings()
		f := ed.Font()
		textEntry.SetText(s.Text)
		sizeSlider.SetValue(s.FontSizePx)
		spacingSlider.SetValue(s.LetterSpacing)
		colorEntry.SetText(s.Color)
		boldCheck.SetChecked(s.Bold)
		italicCheck.SetChecked(s.Italic)
		if f.ID != "" && !f.Supports.Bold {
			boldCheck.Disable()
		} else {
			boldCheck.Enable()
		}
		if f.ID != "" && !f.Supports.Italic {
			italicCheck.Disable()
		} else {
			italicCheck.Enable()
		}
		modeRadio.SetSelected(string(s.CurveMode))
		curveSlider.SetValue(s.Curve)
		radiusSlider.SetValue(s.CircleRadius)
		startSlider.SetValue(s.CircleStart)
		inwardCheck.SetChecked(s.Inward)
		arcBox.Hidden = s.CurveMode != domain.CurveArc
		circleBox.Hidden = s.CurveMode != domain.CurveCircle
		arcBox.Refresh()
		circleBox.Refresh()
	}

	names := make([]string, 0, len(fonts))
	byName := make(map[string]string, len(fonts))
	for _, f := range fonts {
		label := f.Name + " (" + f.Category + ")"
		if !f.Visible {
			label += " [hidden]"
		}
		names = append(names, label)
		byName[label] = f.ID
	}
	fontSelect := widget.NewSelect(names, func(label string) {
		if err := ed.Select(ctx, byName[label]); err != nil {
			l.Error("select font failed", slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		syncControls()
		redraw()
	})
	fontSelect.PlaceHolder = "Choose a font"

	undoAction := func() {
		if ed.Undo() {
			syncControls()
			redraw()
		}
	}
	redoAction := func() {
		if ed.Redo() {
			syncControls()
			redraw()
		}
	}
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { undoAction() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { redoAction() })

	exportAs := func(f export.Format) {
		if ed.Font().ID == "" {
			dialog.ShowInformation("Export", "Choose a font first.", w)
			return
		}
		p, err := ed.Preview()
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil || uc == nil {
				return
			}
			defer func() { _ = uc.Close() }()
			if _, err := ed.Export(uc, f); err != nil {
				l.Error("export failed", slog.String("format", string(f)), slog.Any("err", err))
				dialog.ShowError(err, w)
				return
			}
			status.SetText("Saved " + uc.URI().Name())
		}, w)
		save.SetFileName(p.FileName(string(f)))
		save.Show()
	}

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", undoAction),
		fyne.NewMenuItem("Redo", redoAction),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Reset card", func() {
			ed.Reset()
			syncControls()
			redraw()
		}),
	)
	exportMenu := fyne.NewMenu("Export",
		fyne.NewMenuItem("PNG...", func() { exportAs(export.FormatPNG) }),
		fyne.NewMenuItem("SVG...", func() { exportAs(export.FormatSVG) }),
		fyne.NewMenuItem("PDF...", func() { exportAs(export.FormatPDF) }),
	)
	aboutMenu := fyne.NewMenu("Help", fyne.NewMenuItem("About", func() {
		dialog.ShowInformation("About", "Tattoo Fonts "+version.String(), w)
	}))
	w.SetMainMenu(fyne.NewMainMenu(editMenu, exportMenu, aboutMenu))

	controls := container.NewVBox(
		widget.NewLabel("Font"), fontSelect,
		widget.NewLabel("Text"), textEntry,
		widget.NewLabel("Size"), sizeSlider,
		widget.NewLabel("Letter spacing"), spacingSlider,
		widget.NewLabel("Color (#rrggbb, Enter to apply)"), colorEntry,
		container.NewHBox(boldCheck, italicCheck),
		widget.NewSeparator(),
		modeRadio, arcBox, circleBox,
	)
	split := container.NewHSplit(container.NewVScroll(controls), container.NewStack(bg, preview))
	split.Offset = 0.3
	w.SetContent(container.NewBorder(nil, status, nil, nil, split))
	syncControls()
	if len(names) > 0 {
		fontSelect.SetSelectedIndex(0)
	} else {
		status.SetText("Catalog is empty. Import fonts with: tattoofonts import-legacy <dir>")
	}

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})
	w.ShowAndRun()
	return nil
}
