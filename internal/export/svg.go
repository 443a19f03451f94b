/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"

	"tattoofonts/internal/domain"
	"tattoofonts/internal/vector"
)

// SVGOptions controls SVG output.
type SVGOptions struct {
	// SkipFontEmbed references the family by name instead of embedding
	// the font file as a data URL.
	SkipFontEmbed bool
	// Background paints a white rectangle behind the text.
	Background bool
}

const (
	svgFamily = "tf-preview"
	svgPathID = "tf-path"
)

// RenderSVG writes a standalone SVG document of the preview. Curved
// layouts use textPath so the text stays selectable.
func RenderSVG(out io.Writer, p *Preview, opt SVGOptions) error {
	l := p.Layout
	num := vector.FormatNum

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" xmlns:xlink=\"http://www.w3.org/1999/xlink\" width=\"%s\" height=\"%s\" viewBox=\"%s\">\n",
		num(l.ViewBoxWidth), num(l.ViewBoxHeight), l.ViewBox())
	wf("  <title>%s</title>\n", escText(p.FontName))
	wf("  <defs>\n")
	if !opt.SkipFontEmbed && len(p.FontData) > 0 {
		wf("    <style>@font-face{font-family:\"%s\";src:url(data:%s;base64,%s) format(\"%s\");}</style>\n",
			svgFamily, domain.MimeForExt(p.FontExt), base64.StdEncoding.EncodeToString(p.FontData), cssFormat(p.FontExt))
	}
	if l.Curved {
		wf("    <path id=\"%s\" d=\"%s\" fill=\"none\"/>\n", svgPathID, l.PathDefinition)
	}
	wf("  </defs>\n")
	if opt.Background {
		wf("  <rect width=\"100%%\" height=\"100%%\" fill=\"#ffffff\"/>\n")
	}

	textAttrs := fmt.Sprintf("font-family=\"%s\" font-size=\"%s\" fill=\"%s\"",
		escText(fontFamilyList(p.FontName)), num(l.FontSizePx), p.Ink().Hex())
	if p.Settings.LetterSpacing != 0 {
		textAttrs += fmt.Sprintf(" letter-spacing=\"%s\"", num(p.Settings.LetterSpacing))
	}
	if p.Settings.Bold {
		textAttrs += " font-weight=\"bold\""
	}
	if p.Settings.Italic {
		textAttrs += " font-style=\"italic\""
	}
	content := escText(l.Text)

	if l.Curved {
		if l.Transform != "" {
			wf("  <g transform=\"%s\">\n", l.Transform)
		} else {
			wf("  <g>\n")
		}
		wf("    <text %s><textPath href=\"#%s\" xlink:href=\"#%s\" startOffset=\"%s%%\" text-anchor=\"middle\">%s</textPath></text>\n",
			textAttrs, svgPathID, svgPathID, num(l.TextAnchorOffsetPercent), content)
		wf("  </g>\n")
	} else {
		wf("  <text x=\"%s\" y=\"%s\" text-anchor=\"middle\" dominant-baseline=\"middle\" %s>%s</text>\n",
			num(l.ViewBoxWidth/2), num(l.ViewBoxHeight/2), textAttrs, content)
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	if _, err := out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func fontFamilyList(name string) string {
	if name == "" {
		return svgFamily + ", sans-serif"
	}
	return fmt.Sprintf("%s, '%s', sans-serif", svgFamily, name)
}

func cssFormat(ext string) string {
	switch ext {
	case "otf":
		return "opentype"
	case "woff", "woff2":
		return ext
	default:
		return "truetype"
	}
}

// escText escapes character data and attribute values alike.
func escText(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
