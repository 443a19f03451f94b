/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"tattoofonts/internal/backend"
	"tattoofonts/internal/config"
	"tattoofonts/internal/crash"
	"tattoofonts/internal/domain"
	"tattoofonts/internal/export"
	"tattoofonts/internal/fontpack"
	applog "tattoofonts/internal/log"
	"tattoofonts/internal/storage"
	"tattoofonts/internal/telemetry"
	"tattoofonts/internal/textlayout"
	"tattoofonts/internal/ui"
	"tattoofonts/internal/version"
)

func usage() {
	fmt.Println("Tattoo Fonts")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tattoofonts version|-v|--version            Show version")
	fmt.Println("  tattoofonts serve                            Run the HTTP API")
	fmt.Println("  tattoofonts layout [flags]                   Print the layout geometry as JSON")
	fmt.Println("  tattoofonts render [flags] [font file]       Render one preview to png|svg|pdf")
	fmt.Println("  tattoofonts batch [flags]                    Export a preview of every catalog font")
	fmt.Println("  tattoofonts specimen -o <file.pdf>           Write a PDF specimen of the catalog")
	fmt.Println("  tattoofonts import-legacy <dir>              Import data/fonts.json + public/ from <dir>")
	fmt.Println("  tattoofonts pack export|import <zip>         Back up or restore the whole catalog")
	fmt.Println("  tattoofonts login | logout                   Store or drop an admin session for the client")
	fmt.Println("  tattoofonts fonts [flags]                    List fonts of a running server")
	fmt.Println("  tattoofonts download <id> <format> [flags]   Download a preview from a running server")
	fmt.Println("  tattoofonts hash-password [password]         Print a bcrypt hash for admin.password_hash")
	fmt.Println("  tattoofonts ui                               Launch desktop preview (build with -tags fyne)")
}

// app carries what every command needs.
type app struct {
	cfg     config.AppConfig
	secrets config.Secrets
	l       *slog.Logger
}

func main() {
	cfg, secrets, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	defer func() { _ = applog.Close() }()
	defer crash.Recover(cfg.Server.DataDir)

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	telemetry.SetDefault(telemetry.New(tcfg))
	defer func() {
		telemetry.Default().Flush(context.Background())
		telemetry.Default().Close()
	}()

	a := &app{cfg: cfg, secrets: secrets, l: applog.WithComponent("cli")}
	args := os.Args
	a.l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	if cfgErr != nil && args[1] != "version" && args[1] != "hash-password" {
		a.fail(fmt.Errorf("config: %w", cfgErr))
	}
	cmd, rest := args[1], args[2:]
	var err error
	switch cmd {
	case "version", "--version", "-v":
		fmt.Println(version.String())
		return
	case "serve":
		err = a.serve(rest)
	case "layout":
		err = a.layout(rest)
	case "render":
		err = a.render(rest)
	case "batch":
		err = a.batch(rest)
	case "specimen":
		err = a.specimen(rest)
	case "import-legacy":
		err = a.importLegacy(rest)
	case "pack":
		err = a.pack(rest)
	case "login":
		err = a.login(rest)
	case "logout":
		err = config.ClearAdminToken()
	case "fonts":
		err = a.fonts(rest)
	case "download":
		err = a.download(rest)
	case "hash-password":
		err = hashPassword(rest)
	case "ui":
		err = ui.Run(ui.Options{Store: a.storeOptions(), DataDir: cfg.Server.DataDir, Defaults: a.previewDefaults()})
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Printf("unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		a.fail(err)
	}
}

func (a *app) fail(err error) {
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	a.l.Error("command failed", slog.Any("err", err))
	fmt.Fprintln(os.Stderr, "Error:", err)
	telemetry.Default().Close()
	_ = applog.Close()
	os.Exit(1)
}

func (a *app) storeOptions() storage.Options {
	return storage.Options{
		Driver:               a.cfg.Database.Driver,
		DSN:                  a.cfg.DSN(),
		PreviewCacheMaxBytes: a.cfg.Preview.CacheMaxBytes,
	}
}

func (a *app) openStore(ctx context.Context) (*storage.Store, error) {
	st, err := storage.Open(ctx, a.storeOptions())
	if err != nil {
		return nil, err
	}
	if err := st.SeedCategories(ctx, domain.InitialCategories); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func (a *app) previewDefaults() domain.PreviewSettings {
	d := domain.DefaultPreviewSettings()
	d.FontSizePx = a.cfg.Preview.DefaultFontSizePx
	d.Color = a.cfg.Preview.DefaultColor
	return d.Normalize()
}

func (a *app) client() *backend.Client {
	return backend.NewClient(a.cfg.Backend.BaseURL, a.secrets.AdminToken, a.cfg.Backend.Timeout(), a.cfg.Backend.TLSInsecure)
}

func (a *app) serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	if a.cfg.Admin.PasswordHash == "" && a.secrets.AdminPassword == "" {
		a.l.Warn("admin login disabled: set admin.password_hash or TF_ADMIN_PASSWORD")
	}
	srv, err := backend.New(st, backend.Options{
		Addr:            *addr,
		DataDir:         a.cfg.Server.DataDir,
		Secret:          a.secrets.AuthSecret,
		AdminHash:       a.cfg.Admin.PasswordHash,
		AdminPassword:   a.secrets.AdminPassword,
		SessionTTL:      a.cfg.Admin.SessionTTL(),
		SecureCookies:   strings.HasPrefix(a.cfg.Server.PublicBaseURL, "https://"),
		MaxUploadBytes:  int64(a.cfg.Server.MaxUploadMB) << 20,
		PerPage:         a.cfg.Preview.PerPage,
		PixelRatio:      a.cfg.Preview.PixelRatio,
		DefaultColor:    a.cfg.Preview.DefaultColor,
		DefaultSizePx:   a.cfg.Preview.DefaultFontSizePx,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout(),
	})
	if err != nil {
		return err
	}
	telemetry.Event(telemetry.EventServerStarted, map[string]any{"driver": string(st.Dialect())})
	return srv.ListenAndServe(ctx)
}

// settingsFlags binds the preview card controls to fs.
func settingsFlags(fs *flag.FlagSet, s *domain.PreviewSettings) (mode *string) {
	fs.StringVar(&s.Text, "text", s.Text, "text to render (placeholder when empty)")
	fs.Float64Var(&s.FontSizePx, "size", s.FontSizePx, "font size in px")
	fs.Float64Var(&s.LetterSpacing, "spacing", s.LetterSpacing, "letter spacing in px")
	fs.StringVar(&s.Color, "color", s.Color, "text colour #rrggbb")
	fs.BoolVar(&s.Bold, "bold", s.Bold, "bold")
	fs.BoolVar(&s.Italic, "italic", s.Italic, "italic")
	fs.Float64Var(&s.Curve, "curve", s.Curve, "arc curve strength -100..100")
	fs.Float64Var(&s.CircleRadius, "radius", s.CircleRadius, "circle radius in px")
	fs.Float64Var(&s.CircleStart, "start", s.CircleStart, "circle rotation in degrees")
	fs.BoolVar(&s.Inward, "inward", s.Inward, "circle letters point inward")
	return fs.String("mode", string(s.CurveMode), "none|arc|circle")
}

func (a *app) layout(args []string) error {
	fs := flag.NewFlagSet("layout", flag.ContinueOnError)
	s := a.previewDefaults()
	mode := settingsFlags(fs, &s)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s.CurveMode = domain.CurveMode(*mode)
	res := textlayout.ComputeLayout(s.Normalize().LayoutRequest())
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func (a *app) render(args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	s := a.previewDefaults()
	mode := settingsFlags(fs, &s)
	out := fs.String("o", "", "output file (default <Font_Name>_preview.<format>)")
	format := fs.String("format", "png", "png|svg|pdf")
	ratio := fs.Float64("ratio", a.cfg.Preview.PixelRatio, "PNG pixel ratio")
	preset := fs.String("preset", string(export.PresetWeb), "web|print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s.CurveMode = domain.CurveMode(*mode)
	f, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}
	font := domain.Font{Name: "Go Regular"}
	var data []byte
	if path := fs.Arg(0); path != "" {
		if data, err = os.ReadFile(path); err != nil {
			return err
		}
		font.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		font.FileExt, _ = domain.FontExt(path)
	}
	p, err := export.NewPreview(font, data, s)
	if err != nil {
		return err
	}
	if p.Fallback && len(data) > 0 {
		a.l.Warn("font could not be parsed, rendering with the default face", slog.String("font", fs.Arg(0)))
	}
	dest := *out
	if dest == "" {
		dest = p.FileName(string(f))
	}
	w, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := export.Render(w, p, f, export.PresetName(*preset), *ratio); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Println("Wrote", dest)
	return nil
}

func (a *app) batch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	s := a.previewDefaults()
	mode := settingsFlags(fs, &s)
	preset := fs.String("preset", string(export.PresetWeb), "web|print")
	formats := fs.String("formats", "", "comma separated formats (default: preset formats)")
	outDir := fs.String("dir", "", "output directory (default exports/<preset>)")
	category := fs.String("category", "", "only this category")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s.CurveMode = domain.CurveMode(*mode)
	opt := export.BatchOptions{Preset: export.PresetName(*preset), OutDir: *outDir}
	for _, name := range strings.Split(*formats, ",") {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		f, err := export.ParseFormat(name)
		if err != nil {
			return err
		}
		opt.Formats = append(opt.Formats, f)
	}
	ctx := context.Background()
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	fonts, _, err := st.ListFonts(ctx, storage.FontQuery{Category: *category})
	if err != nil {
		return err
	}
	previews := make([]*export.Preview, 0, len(fonts))
	for _, f := range fonts {
		_, data, err := st.FontFile(ctx, f.ID)
		if err != nil {
			return err
		}
		p, err := export.NewPreview(f, data, s)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		previews = append(previews, p)
	}
	written, err := export.BatchExport(previews, opt)
	for _, path := range written {
		fmt.Println("Wrote", path)
	}
	return err
}

func (a *app) specimen(args []string) error {
	fs := flag.NewFlagSet("specimen", flag.ContinueOnError)
	out := fs.String("o", "specimen.pdf", "output PDF")
	title := fs.String("title", "Tattoo Fonts", "sheet title")
	sample := fs.String("text", "", "sample text")
	hidden := fs.Bool("hidden", false, "include hidden fonts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx := context.Background()
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	fonts, _, err := st.ListFonts(ctx, storage.FontQuery{IncludeHidden: *hidden})
	if err != nil {
		return err
	}
	entries := make([]export.SpecimenEntry, 0, len(fonts))
	for _, f := range fonts {
		_, data, err := st.FontFile(ctx, f.ID)
		if err != nil {
			return err
		}
		entries = append(entries, export.SpecimenEntry{Font: f, Data: data})
	}
	w, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := export.WriteSpecimenPDF(w, entries, export.SpecimenOptions{Title: *title, SampleText: *sample}); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d fonts)\n", *out, len(entries))
	return nil
}

func (a *app) importLegacy(args []string) error {
	if len(args) < 1 {
		return errors.New("import-legacy requires <dir>")
	}
	ctx := context.Background()
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	res, err := fontpack.ImportLegacy(ctx, st, args[0])
	if err != nil {
		return err
	}
	telemetry.Event(telemetry.EventPackImported, map[string]any{"kind": "legacy", "fonts": res.Imported})
	fmt.Printf("Imported %d fonts, skipped %d\n", res.Imported, res.Skipped)
	return nil
}

func (a *app) pack(args []string) error {
	if len(args) < 2 {
		return errors.New("pack requires export|import and <zip>")
	}
	ctx := context.Background()
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	switch args[0] {
	case "export":
		n, err := fontpack.Export(ctx, st, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d fonts to %s\n", n, args[1])
	case "import":
		res, err := fontpack.Import(ctx, st, args[1])
		if err != nil {
			return err
		}
		telemetry.Event(telemetry.EventPackImported, map[string]any{"kind": "zip", "fonts": res.Imported})
		fmt.Printf("Imported %d fonts, skipped %d\n", res.Imported, res.Skipped)
	default:
		return fmt.Errorf("unknown pack action %q", args[0])
	}
	return nil
}

func readPassword(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) login(args []string) error {
	pw, err := readPassword(args)
	if err != nil {
		return err
	}
	c := a.client()
	tok, err := c.Login(context.Background(), pw)
	if err != nil {
		return err
	}
	if err := config.Save(a.cfg, tok); err != nil {
		return err
	}
	fmt.Println("Logged in to", a.cfg.Backend.BaseURL)
	return nil
}

func (a *app) fonts(args []string) error {
	fs := flag.NewFlagSet("fonts", flag.ContinueOnError)
	var o backend.ListOptions
	fs.StringVar(&o.Category, "category", "", "filter by category")
	fs.StringVar(&o.Query, "q", "", "search by name")
	fs.BoolVar(&o.All, "all", false, "include hidden fonts (admin)")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	o.PerPage = -1
	page, err := a.client().ListFonts(context.Background(), o)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPREMIUM\tVISIBLE")
	for _, f := range page.Fonts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\n", f.ID, f.Name, f.Category, f.IsPremium, f.Visible)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d fonts\n", page.Total)
	return nil
}

func (a *app) download(args []string) error {
	if len(args) < 2 {
		return errors.New("download requires <id> and <format>")
	}
	id, format := args[0], args[1]
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	s := a.previewDefaults()
	mode := settingsFlags(fs, &s)
	out := fs.String("o", "", "output file (default: name suggested by the server)")
	ratio := fs.Float64("ratio", 0, "PNG pixel ratio")
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}
	s.CurveMode = domain.CurveMode(*mode)
	tmp, err := os.CreateTemp(".", ".tattoofonts-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	name, err := a.client().DownloadPreview(context.Background(), id, format, s.Normalize(), *ratio, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	dest := *out
	if dest == "" {
		dest = filepath.Base(name)
	}
	if dest == "" || dest == "." {
		dest = id + "." + format
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return err
	}
	fmt.Println("Wrote", dest)
	return nil
}

func hashPassword(args []string) error {
	pw, err := readPassword(args)
	if err != nil {
		return err
	}
	h, err := backend.HashPassword(pw)
	if err != nil {
		return err
	}
	fmt.Println(h)
	return nil
}
