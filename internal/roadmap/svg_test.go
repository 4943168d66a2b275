package roadmap

import (
	"strings"
	"testing"

	"github.com/rocketstack/roadmapper/internal/githubapi"
)

// ---------------------------------------------------------------------------
// Color helpers
// ---------------------------------------------------------------------------

func TestValidateHexColor(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ffffff", "ffffff"},
		{"#ffffff", "ffffff"},
		{"abc", "abc"},
		{"#AbC", "AbC"},
		{"", ""},
		{"red", ""},
		{"12345", ""},
		{"1234567", ""},
		{"ggg", ""},
		{"##fff", ""},
	}
	for _, tc := range cases {
		if got := ValidateHexColor(tc.in); got != tc.want {
			t.Errorf("ValidateHexColor(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeHex(t *testing.T) {
	if got := NormalizeHex("abc"); got != "aabbcc" {
		t.Errorf("NormalizeHex(abc) = %q, want aabbcc", got)
	}
	if got := NormalizeHex("123456"); got != "123456" {
		t.Errorf("NormalizeHex(123456) = %q, want unchanged", got)
	}
}

func TestHexToRGBA(t *testing.T) {
	if got := HexToRGBA("24292f", 0.7); got != "rgba(36, 41, 47, 0.7)" {
		t.Errorf("HexToRGBA = %q", got)
	}
	if got := HexToRGBA("fff", 0.08); got != "rgba(255, 255, 255, 0.08)" {
		t.Errorf("HexToRGBA(fff) = %q", got)
	}
}

// ---------------------------------------------------------------------------
// SVG output
// ---------------------------------------------------------------------------

func TestRenderSVGStructure(t *testing.T) {
	issues := []githubapi.Issue{
		issue(1, "Ship it", label(LabelNow, "aabbcc")),
		issue(2, "Then this", label(LabelNext, "ddeeff")),
		issue(3, "One day", label(LabelLater, "001122")),
	}

	svg := RenderSVG(issues, "", "")

	// One ungrouped card per column: header + 1 slot + footer strip.
	if !strings.Contains(svg, `viewBox="0 0 1140 265"`) {
		t.Errorf("viewBox missing or wrong height:\n%s", svg)
	}
	for _, want := range []string{
		">Now<", ">Next<", ">Later<",
		"working on it right now", "Coming up next", "On the horizon",
		`transform="translate(0, 0)"`,
		`transform="translate(380, 0)"`,
		`transform="translate(760, 0)"`,
		"Ship it", "Then this", "One day",
		"fill: #aabbcc",
		"Roadmaps are cached for 60 minutes",
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("svg missing %q", want)
		}
	}
}

func TestRenderSVGFixtureHeight(t *testing.T) {
	// Three ungrouped cards in one column: 130 + 3*95 + 10 + 30 = 455.
	issues := []githubapi.Issue{
		issue(1, "a", label(LabelNow, "")),
		issue(2, "b", label(LabelNow, "")),
		issue(3, "c", label(LabelNow, "")),
	}
	svg := RenderSVG(issues, "ffffff", "24292f")
	if !strings.Contains(svg, `viewBox="0 0 1140 455"`) {
		t.Errorf("svg height != 455:\n%s", svg[:120])
	}
}

func TestRenderSVGEscapesTitles(t *testing.T) {
	issues := []githubapi.Issue{
		issue(1, `<script>alert("x")</script>`, label(LabelNow, "")),
	}
	svg := RenderSVG(issues, "", "")
	if strings.Contains(svg, "<script>") {
		t.Error("issue title injected unescaped markup")
	}
	if !strings.Contains(svg, "&lt;script&gt;") {
		t.Error("escaped title missing from output")
	}
}

func TestRenderSVGColorFallbacks(t *testing.T) {
	svg := RenderSVG(nil, "not-a-color", "zzz")
	if !strings.Contains(svg, "background-color: #ffffff") {
		t.Error("invalid background did not fall back to white")
	}
	if !strings.Contains(svg, "#24292f") {
		t.Error("invalid text color did not fall back to default")
	}
}

func TestRenderSVGShortHexExpanded(t *testing.T) {
	svg := RenderSVG(nil, "abc", "000")
	if !strings.Contains(svg, "background-color: #aabbcc") {
		t.Error("3-digit background not expanded")
	}
}

func TestRenderSVGGroupContainers(t *testing.T) {
	issues := []githubapi.Issue{
		issue(1, "a", label(LabelNow, ""), grouped("API")),
		issue(2, "b", label(LabelNext, "")),
	}
	svg := RenderSVG(issues, "", "")

	if !strings.Contains(svg, ">API<") {
		t.Error("group container label missing")
	}
	if !strings.Contains(svg, ">"+UngroupedLabel+"<") {
		t.Error("Other band label missing")
	}
	if !strings.Contains(svg, `<rect x="5" `) {
		t.Error("full-width band container missing")
	}
}
