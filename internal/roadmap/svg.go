package roadmap

import (
	"fmt"
	"html"
	"strings"

	"github.com/rocketstack/roadmapper/internal/githubapi"
)

// Column geometry. Each column is 380 units wide inside a 1140-unit viewBox.
const (
	svgWidth    = 1140
	columnWidth = 380

	defaultBackground = "ffffff"
	defaultText       = "24292f"
	fallbackLabelHex  = "#8b949e"
)

// theme holds the colors derived from the two caller-supplied hex values.
type theme struct {
	background  string
	card        string
	header      string
	subheader   string
	cardText    string
	shadow      string
	hoverShadow string
}

func newTheme(bgColor, textColor string) theme {
	bg := ValidateHexColor(bgColor)
	if bg == "" {
		bg = defaultBackground
	}
	bg = NormalizeHex(bg)

	text := ValidateHexColor(textColor)
	if text == "" {
		text = defaultText
	}
	text = NormalizeHex(text)

	return theme{
		background:  "#" + bg,
		card:        "#" + bg,
		header:      "#" + text,
		subheader:   HexToRGBA(text, 0.7),
		cardText:    "#" + text,
		shadow:      HexToRGBA(text, 0.08),
		hoverShadow: HexToRGBA(text, 0.12),
	}
}

const fontStack = "-apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif"

// RenderSVG produces the full roadmap image for a repository's issues.
// Colors are caller-supplied hex values; invalid or empty values fall back to
// a white background with GitHub's default text color. Issue titles come from
// untrusted repositories, so all interpolated text is entity-escaped.
func RenderSVG(issues []githubapi.Issue, bgColor, textColor string) string {
	th := newTheme(bgColor, textColor)
	cols := SplitColumns(issues)
	layout := BuildGlobalLayout(cols)

	footerY := layout.TotalHeight + 10
	svgHeight := footerY + 30

	var b strings.Builder
	fmt.Fprintf(&b, `<svg viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg" overflow="hidden" style="background-color: %s">`,
		svgWidth, svgHeight, th.background)
	fmt.Fprintf(&b, `<defs><style>.roadmap-card:hover rect:first-child { filter: drop-shadow(0 4px 12px %s); }</style></defs>`,
		th.hoverShadow)

	if layout.HasGroups {
		for _, band := range layout.Bands {
			writeBandContainer(&b, th, band)
		}
		if layout.UngroupedBand != nil {
			writeBandContainer(&b, th, *layout.UngroupedBand)
		}
	}

	writeColumn(&b, th, "Now", "We're working on it right now", cols.Now, 0, layout)
	writeColumn(&b, th, "Next", "Coming up next", cols.Next, columnWidth, layout)
	writeColumn(&b, th, "Later", "On the horizon", cols.Later, 2*columnWidth, layout)

	fmt.Fprintf(&b, `<text x="570" y="%d" style="font-size: 12px; text-anchor: middle; font-family: %s; font-weight: 400; fill: %s;">Roadmaps are cached for 60 minutes</text>`,
		footerY+15, fontStack, th.subheader)
	b.WriteString(`</svg>`)
	return b.String()
}

// writeBandContainer draws the full-width rounded box and centered label that
// sit behind one band's cards in all three columns.
func writeBandContainer(b *strings.Builder, th theme, band Band) {
	height := 28
	if band.MaxCards > 0 {
		height = GroupHeaderHeight + band.MaxCards*CardSlotHeight - 12
	}
	fmt.Fprintf(b, `<rect x="5" y="%d" width="1130" height="%d" rx="12" ry="12" style="fill: %s; filter: drop-shadow(0 1px 3px %s);"></rect>`,
		band.YStart, height, th.card, th.shadow)
	fmt.Fprintf(b, `<text x="570" y="%d" style="font-size: 13px; text-anchor: middle; font-family: %s; font-weight: 600; fill: %s; opacity: 0.7;">%s</text>`,
		band.YStart+22, fontStack, th.header, html.EscapeString(band.Name))
}

func writeColumn(b *strings.Builder, th theme, title, subtitle string, col Grouped, x int, layout Layout) {
	fmt.Fprintf(b, `<g transform="translate(%d, 0)">`, x)
	fmt.Fprintf(b, `<text x="190" y="40" style="font-size: 24px; text-anchor: middle; font-family: %s; font-weight: 700; fill: %s; letter-spacing: -0.5px;">%s</text>`,
		fontStack, th.header, title)
	fmt.Fprintf(b, `<foreignObject x="20" y="55" width="340" height="60"><body xmlns="http://www.w3.org/1999/xhtml" style="margin: 0;"><div style="font-size: 13px; font-family: %s; font-weight: 400; color: %s; text-align: center; line-height: 1.5; padding: 0 10px;">%s</div></body></foreignObject>`,
		fontStack, th.subheader, subtitle)

	if !layout.HasGroups {
		y := ColumnHeaderHeight
		for _, item := range col.Ungrouped {
			writeCard(b, th, item, y)
			y += CardSlotHeight
		}
	} else {
		for _, band := range layout.Bands {
			for _, g := range col.Groups {
				if g.Name != band.Name {
					continue
				}
				y := band.YStart + GroupHeaderHeight
				for _, item := range g.Items {
					writeCard(b, th, item, y)
					y += CardSlotHeight
				}
			}
		}
		if layout.UngroupedBand != nil {
			y := layout.UngroupedBand.YStart + GroupHeaderHeight
			for _, item := range col.Ungrouped {
				writeCard(b, th, item, y)
				y += CardSlotHeight
			}
		}
	}

	b.WriteString(`</g>`)
}

// writeCard draws one issue card: a rounded rect, a 4-unit accent strip in
// the column label's color, and the title clamped to two lines. The whole
// card links to the issue.
func writeCard(b *strings.Builder, th theme, item Item, y int) {
	accent := fallbackLabelHex
	if item.LabelColor != "" {
		accent = "#" + item.LabelColor
	}

	fmt.Fprintf(b, `<a href="%s" target="_blank" rel="noopener noreferrer">`, html.EscapeString(item.HTMLURL))
	fmt.Fprintf(b, `<g transform="translate(0, %d)" class="roadmap-card" style="cursor: pointer;">`, y)
	fmt.Fprintf(b, `<rect x="15" y="0" width="350" height="75" rx="8" ry="8" style="fill: %s; filter: drop-shadow(0 1px 3px %s);"></rect>`,
		th.card, th.shadow)
	fmt.Fprintf(b, `<rect x="15" y="0" width="350" height="4" rx="8" ry="8" style="fill: %s;"></rect>`, accent)
	fmt.Fprintf(b, `<foreignObject x="25" y="15" width="330" height="55" style="pointer-events: none;"><body xmlns="http://www.w3.org/1999/xhtml" style="margin: 0;"><div style="font-size: 14px; font-family: %s; font-weight: 500; color: %s; line-height: 1.4; padding: 8px 10px; word-wrap: break-word; overflow: hidden; display: -webkit-box; -webkit-line-clamp: 2; -webkit-box-orient: vertical;">%s</div></body></foreignObject>`,
		fontStack, th.cardText, html.EscapeString(item.Title))
	b.WriteString(`</g></a>`)
}
