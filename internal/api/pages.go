package api

import (
	"fmt"
	"html"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rocketstack/roadmapper/internal/githubapi"
	"github.com/rocketstack/roadmapper/internal/roadmap"
	"github.com/rocketstack/roadmapper/internal/telemetry"
)

const fontStack = "-apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif"

var (
	landingTmpl = template.Must(template.New("landing").Parse(landingPageHTML))
	viewTmpl    = template.Must(template.New("view").Parse(viewPageHTML))
	embedTmpl   = template.Must(template.New("embed").Parse(embedPageHTML))
	htmlTmpl    = template.Must(template.New("html").Parse(htmlPageHTML))
)

// landingPage serves the marketing/registration page. The confirmation flow
// redirects back here with query parameters that the page's script surfaces.
func (h *Handlers) landingPage(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := landingTmpl.Execute(c.Writer, nil); err != nil {
		_ = c.Error(err)
	}
}

// viewPage serves the standalone viewer: a themed page wrapping the SVG with
// a preset cycler that rewrites the color segments of the URL.
func (h *Handlers) viewPage(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")
	bg, text := c.Param("bg"), c.Param("text")

	telemetry.RendersTotal.WithLabelValues("view").Inc()

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	err := viewTmpl.Execute(c.Writer, map[string]string{
		"Owner":  owner,
		"Repo":   repo,
		"Bg":     bg,
		"Text":   text,
		"SVGURL": fmt.Sprintf("%s/%s/%s/%s/%s", h.cfg.Server.GetPublicURL(), owner, repo, bg, text),
	})
	if err != nil {
		_ = c.Error(err)
	}
}

// embedPage serves an iframe-friendly page: the SVG as an <img> plus an HTML
// image map built from the same global layout the renderer uses, so the
// clickable regions line up with the drawn cards. A postMessage hook lets the
// parent frame match its height to the image.
func (h *Handlers) embedPage(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")
	bg, text := c.Param("bg"), c.Param("text")

	issues, err := h.cache.FetchIssues(c.Request.Context(), owner, repo, cacheTTL(c))
	if err != nil {
		c.String(http.StatusInternalServerError, "Error fetching GitHub issues")
		return
	}

	cols := roadmap.SplitColumns(issues)
	layout := roadmap.BuildGlobalLayout(cols)

	var areas strings.Builder
	writeColumnAreas(&areas, cols.Now, 0, layout)
	writeColumnAreas(&areas, cols.Next, 1, layout)
	writeColumnAreas(&areas, cols.Later, 2, layout)

	telemetry.RendersTotal.WithLabelValues("embed").Inc()

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	err = embedTmpl.Execute(c.Writer, map[string]any{
		"ImageURL": fmt.Sprintf("%s/%s/%s/%s/%s", h.cfg.Server.GetPublicURL(), owner, repo, bg, text),
		"MapAreas": template.HTML(areas.String()),
	})
	if err != nil {
		_ = c.Error(err)
	}
}

// writeColumnAreas emits one <area> per card in a column, at the card's
// on-image rectangle: 15 units in from the column edge, 350 wide, 75 tall.
func writeColumnAreas(b *strings.Builder, col roadmap.Grouped, columnIndex int, layout roadmap.Layout) {
	xOffset := columnIndex * 380

	area := func(item roadmap.Item, y int) {
		fmt.Fprintf(b, "    <area shape=\"rect\" coords=\"%d,%d,%d,%d\" href=\"%s\" alt=\"%s\" target=\"_blank\">\n",
			xOffset+15, y, xOffset+365, y+75, html.EscapeString(item.HTMLURL), html.EscapeString(item.Title))
	}

	if !layout.HasGroups {
		y := roadmap.ColumnHeaderHeight
		for _, item := range col.Ungrouped {
			area(item, y)
			y += roadmap.CardSlotHeight
		}
		return
	}

	for _, band := range layout.Bands {
		for _, g := range col.Groups {
			if g.Name != band.Name {
				continue
			}
			y := band.YStart + roadmap.GroupHeaderHeight
			for _, item := range g.Items {
				area(item, y)
				y += roadmap.CardSlotHeight
			}
		}
	}
	if layout.UngroupedBand != nil {
		y := layout.UngroupedBand.YStart + roadmap.GroupHeaderHeight
		for _, item := range col.Ungrouped {
			area(item, y)
			y += roadmap.CardSlotHeight
		}
	}
}

// htmlPage serves the legacy copy-paste snippet page. It predates grouped
// layouts and the Next column: the columns are Now / Later / Future, laid out
// flat, and the third URL segment is a named color scheme rather than a hex
// pair. Kept for READMEs that embedded the snippet years ago.
func (h *Handlers) htmlPage(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")
	scheme := c.Param("scheme")
	if scheme == "" {
		scheme = "dark"
	}

	issues, err := h.cache.FetchIssues(c.Request.Context(), owner, repo, cacheTTL(c))
	if err != nil {
		c.String(http.StatusInternalServerError, "Error fetching GitHub issues")
		return
	}

	imageURL := fmt.Sprintf("%s/%s/%s/%s", h.cfg.Server.GetPublicURL(), owner, repo, scheme)
	viewURL := fmt.Sprintf("%s/view/%s/%s/%s", h.cfg.Server.GetPublicURL(), owner, repo, scheme)

	var mapAreas strings.Builder
	writeFlatAreas(&mapAreas, pickByLabel(issues, roadmap.LabelNow), 0)
	writeFlatAreas(&mapAreas, pickByLabel(issues, roadmap.LabelLater), 1)
	writeFlatAreas(&mapAreas, pickByLabel(issues, "Roadmap: Future"), 2)

	snippet := fmt.Sprintf("<img src=\"%s\" alt=\"%s/%s Roadmap\" usemap=\"#roadmap-%s-%s\" style=\"max-width: 100%%;\">\n<map name=\"roadmap-%s-%s\">\n%s</map>",
		imageURL, owner, repo, owner, repo, owner, repo, mapAreas.String())

	telemetry.RendersTotal.WithLabelValues("html").Inc()

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	err = htmlTmpl.Execute(c.Writer, map[string]any{
		"Owner":    owner,
		"Repo":     repo,
		"Snippet":  snippet,
		"Preview":  template.HTML(snippet),
		"ImageURL": imageURL,
		"ViewURL":  viewURL,
	})
	if err != nil {
		_ = c.Error(err)
	}
}

// pickByLabel returns the issues carrying the named label, sorted by number.
func pickByLabel(issues []githubapi.Issue, labelName string) []githubapi.Issue {
	var picked []githubapi.Issue
	for _, issue := range issues {
		for _, l := range issue.Labels {
			if l.Name == labelName {
				picked = append(picked, issue)
				break
			}
		}
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].Number < picked[j].Number })
	return picked
}

func writeFlatAreas(b *strings.Builder, issues []githubapi.Issue, columnIndex int) {
	xOffset := columnIndex * 380
	for i, issue := range issues {
		y := roadmap.ColumnHeaderHeight + i*roadmap.CardSlotHeight
		fmt.Fprintf(b, "    <area shape=\"rect\" coords=\"%d,%d,%d,%d\" href=\"%s\" alt=\"%s\" target=\"_blank\">\n",
			xOffset+15, y, xOffset+365, y+75, html.EscapeString(issue.HTMLURL), html.EscapeString(issue.Title))
	}
}

const landingPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Roadmapper - GitHub Issue Roadmaps Made Simple</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body { font-family: ` + fontStack + `; background: #f6f8fa; color: #24292f; }
    .container { max-width: 800px; margin: 0 auto; padding: 60px 20px; }
    .hero { text-align: center; margin-bottom: 48px; }
    .hero h1 { font-size: 40px; background: linear-gradient(135deg, #1E88E5 0%, #26A69A 50%, #66BB6A 100%); -webkit-background-clip: text; -webkit-text-fill-color: transparent; background-clip: text; margin-bottom: 12px; }
    .hero p { color: #57606a; font-size: 18px; }
    .card { background: white; border: 1px solid #e1e4e8; border-radius: 12px; padding: 32px; margin-bottom: 24px; box-shadow: 0 1px 3px rgba(0,0,0,0.08); }
    .card h2 { font-size: 20px; margin-bottom: 16px; }
    .card ol { margin-left: 20px; color: #57606a; line-height: 2; }
    .card code { background: #f6f8fa; border: 1px solid #e1e4e8; border-radius: 4px; padding: 2px 6px; font-family: 'SFMono-Regular', Consolas, monospace; font-size: 13px; }
    .notice { display: none; border-radius: 8px; padding: 16px 20px; margin-bottom: 24px; }
    .notice.ok { background: #dafbe1; border: 1px solid #2da44e; color: #116329; }
    .notice.err { background: #ffebe9; border: 1px solid #cf222e; color: #a40e26; }
    .notice code { background: rgba(255,255,255,0.7); }
    form { display: grid; gap: 12px; }
    input { padding: 10px 12px; border: 1px solid #e1e4e8; border-radius: 6px; font-size: 14px; }
    button { background: linear-gradient(135deg, #1E88E5, #26A69A); color: white; border: none; padding: 12px; border-radius: 8px; font-size: 15px; font-weight: 600; cursor: pointer; }
    .result { margin-top: 16px; font-size: 14px; line-height: 1.6; word-break: break-all; }
    .footer { text-align: center; color: #8b949e; font-size: 13px; margin-top: 40px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="hero">
      <h1>Roadmapper</h1>
      <p>Turn your GitHub issues into a beautiful roadmap image</p>
    </div>

    <div id="notice" class="notice"></div>

    <div class="card">
      <h2>How it works</h2>
      <ol>
        <li>Label your issues <code>Roadmap: Now</code>, <code>Roadmap: Next</code>, or <code>Roadmap: Later</code></li>
        <li>Register your repository below to get an API key</li>
        <li>Commit the key to a <code>.roadmapper</code> file in your repository root</li>
        <li>Embed <code>![Roadmap](https://roadmapper.rocketstack.co/&lt;owner&gt;/&lt;repo&gt;)</code> in your README</li>
      </ol>
    </div>

    <div class="card">
      <h2>Register a repository</h2>
      <form id="register-form">
        <input name="owner" placeholder="GitHub owner or organization" required>
        <input name="repo" placeholder="Repository name" required>
        <input name="email" type="email" placeholder="Email address" required>
        <button type="submit">Get API key</button>
      </form>
      <div id="result" class="result"></div>
    </div>

    <div class="footer">Roadmaps are cached for 60 minutes on the free tier.</div>
  </div>

  <script>
    const params = new URLSearchParams(window.location.search);
    const notice = document.getElementById('notice');
    if (params.get('confirmed') === 'true') {
      notice.className = 'notice ok';
      notice.style.display = 'block';
      const key = params.get('key');
      notice.innerHTML = 'Registration confirmed for <strong>' + params.get('owner') + '/' + params.get('repo') + '</strong>.' +
        (key ? ' Your key: <code>' + key + '</code> Save it now, it will not be shown again.' : '');
    } else if (params.get('confirm_error')) {
      notice.className = 'notice err';
      notice.style.display = 'block';
      notice.textContent = params.get('confirm_error');
    }

    document.getElementById('register-form').addEventListener('submit', async (e) => {
      e.preventDefault();
      const form = new FormData(e.target);
      const result = document.getElementById('result');
      result.textContent = 'Registering...';
      const res = await fetch('/api/register', {
        method: 'POST',
        headers: { 'Content-Type': 'application/json' },
        body: JSON.stringify(Object.fromEntries(form)),
      });
      const data = await res.json();
      if (!res.ok) {
        result.textContent = data.error || 'Registration failed';
        return;
      }
      result.innerHTML = data.pendingConfirmation
        ? data.message
        : 'Your key: <code>' + data.key + '</code><br>' + data.message;
    });
  </script>
</body>
</html>
`

const viewPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Owner}}/{{.Repo}} - Roadmap</title>
  <style>
    :root {
      --bg-primary: #ffffff;
      --bg-secondary: #f6f8fa;
      --text-primary: #1a1a1a;
      --text-secondary: #57606a;
      --border-color: #e1e4e8;
      --link-color: #0969da;
    }
    [data-theme="dark"] {
      --bg-primary: #0d1117;
      --bg-secondary: #161b22;
      --text-primary: #e6edf3;
      --text-secondary: #8b949e;
      --border-color: #30363d;
      --link-color: #58a6ff;
    }
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body { font-family: ` + fontStack + `; background: var(--bg-secondary); color: var(--text-primary); padding: 20px; min-height: 100vh; transition: background-color 0.3s ease, color 0.3s ease; }
    .container { max-width: 1200px; margin: 0 auto; }
    .header { text-align: center; margin-bottom: 30px; position: relative; }
    .logo-text { font-size: 20px; font-weight: 600; margin-bottom: 24px; background: linear-gradient(135deg, #1E88E5 0%, #26A69A 50%, #66BB6A 100%); -webkit-background-clip: text; -webkit-text-fill-color: transparent; background-clip: text; }
    .theme-toggle { position: absolute; top: 0; right: 0; background: none; border: 1px solid var(--border-color); padding: 8px 12px; border-radius: 6px; cursor: pointer; font-size: 14px; color: var(--text-primary); }
    .theme-toggle:hover { background: var(--bg-primary); }
    .header h1 { font-size: 32px; margin-bottom: 8px; }
    .header p { color: var(--text-secondary); font-size: 16px; }
    .header a { color: var(--link-color); text-decoration: none; }
    .header a:hover { text-decoration: underline; }
    .roadmap-container { background: var(--bg-primary); border-radius: 12px; padding: 20px; box-shadow: 0 1px 3px rgba(0, 0, 0, 0.1); border: 1px solid var(--border-color); }
    object { width: 100%; display: block; min-height: 400px; }
    .footer { text-align: center; margin-top: 30px; padding: 20px; color: var(--text-secondary); font-size: 14px; }
    .footer a { color: var(--link-color); text-decoration: none; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <button class="theme-toggle" onclick="toggleTheme()"><span class="theme-icon">Light</span></button>
      <div class="logo-text">Roadmapper</div>
      <h1>{{.Owner}}/{{.Repo}}</h1>
      <p>Project Roadmap &middot; <a href="https://github.com/{{.Owner}}/{{.Repo}}" target="_blank">View on GitHub</a></p>
    </div>

    <div class="roadmap-container">
      <object data="{{.SVGURL}}" type="image/svg+xml" width="100%" style="display: block;">
        <img src="{{.SVGURL}}" alt="Roadmap" style="width: 100%;" />
      </object>
    </div>

    <div class="footer">
      <p>Powered by <a href="https://roadmapper.rocketstack.co" target="_blank">Roadmapper</a> &middot; Click any item to view the issue on GitHub</p>
    </div>
  </div>

  <script>
    const COLOR_PRESETS = [
      { name: 'Light', bg: 'ffffff', text: '24292f', theme: 'light' },
      { name: 'Dark', bg: '0d1117', text: 'e6edf3', theme: 'dark' },
      { name: 'GitHub', bg: 'f6f8fa', text: '24292f', theme: 'light' },
      { name: 'Navy', bg: '001f3f', text: 'ffffff', theme: 'dark' },
      { name: 'Forest', bg: '2c5f2d', text: 'ffffff', theme: 'dark' }
    ];

    const currentBg = '{{.Bg}}';
    const currentText = '{{.Text}}';
    let currentPresetIndex = COLOR_PRESETS.findIndex(p => p.bg === currentBg && p.text === currentText);
    if (currentPresetIndex === -1) currentPresetIndex = 0;

    const currentPreset = COLOR_PRESETS[currentPresetIndex];
    document.documentElement.setAttribute('data-theme', currentPreset.theme);
    document.querySelector('.theme-icon').textContent = currentPreset.name;

    function toggleTheme() {
      currentPresetIndex = (currentPresetIndex + 1) % COLOR_PRESETS.length;
      const preset = COLOR_PRESETS[currentPresetIndex];
      // Path structure: ['', 'view', 'owner', 'repo', 'bg', 'text']
      const path = window.location.pathname.split('/');
      path[4] = preset.bg;
      path[5] = preset.text;
      window.location.pathname = path.join('/');
    }
  </script>
</body>
</html>
`

const embedPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <style>
    html, body { margin: 0; padding: 0; overflow: hidden; }
    img { max-width: 100%; height: auto; display: block; }
  </style>
</head>
<body>
  <img src="{{.ImageURL}}" alt="Roadmap" usemap="#roadmap" style="width: 100%;">
  <map name="roadmap">
{{.MapAreas}}  </map>
  <script>
    var img = document.querySelector('img');
    function sendSize() {
      if (window.parent !== window && img.offsetHeight > 0) {
        window.parent.postMessage({ type: 'roadmap-resize', height: img.offsetHeight }, '*');
      }
    }
    if (img.complete) sendSize();
    else img.addEventListener('load', sendSize);
    window.addEventListener('resize', sendSize);
  </script>
</body>
</html>
`

const htmlPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Owner}}/{{.Repo}} - Roadmap HTML</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body { font-family: ` + fontStack + `; background: #f6f8fa; padding: 40px 20px; }
    .container { max-width: 1200px; margin: 0 auto; background: white; border-radius: 12px; box-shadow: 0 1px 3px rgba(0,0,0,0.1); overflow: hidden; }
    .header { background: linear-gradient(135deg, #1E88E5 0%, #26A69A 100%); color: white; padding: 30px 40px; text-align: center; }
    .header h1 { font-size: 28px; margin-bottom: 8px; }
    .header p { opacity: 0.9; }
    .section { padding: 40px; border-bottom: 1px solid #e1e4e8; }
    .section:last-child { border-bottom: none; }
    .section h2 { font-size: 20px; margin-bottom: 16px; color: #24292f; }
    .warning { background: #fff3cd; border: 1px solid #ffc107; border-radius: 6px; padding: 16px; margin: 20px 0; color: #856404; }
    .code-block { background: #f6f8fa; border: 1px solid #e1e4e8; border-radius: 6px; padding: 16px; overflow-x: auto; font-family: 'SFMono-Regular', Consolas, monospace; font-size: 13px; line-height: 1.6; }
    .code-block code { color: #24292f; white-space: pre; }
    .preview-container { border: 1px solid #e1e4e8; border-radius: 6px; padding: 20px; background: white; }
    img { max-width: 100%; height: auto; display: block; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>HTML Code for {{.Owner}}/{{.Repo}}</h1>
      <p>Copy the HTML below to embed in your README</p>
    </div>

    <div class="section">
      <h2>Preview (Try clicking on the cards!)</h2>
      <div class="preview-container">
        {{.Preview}}
      </div>
    </div>

    <div class="section">
      <h2>HTML Code</h2>
      <div class="warning">
        <strong>GitHub Limitation:</strong> GitHub's markdown renderer may not support HTML image maps for security reasons.
        If this doesn't work in your README, use the <a href="{{.ViewURL}}" style="color: #0969da;">viewer link approach</a> instead.
      </div>
      <p style="margin-bottom: 12px;">Copy and paste this HTML into your README.md:</p>
      <div class="code-block"><code>{{.Snippet}}</code></div>
    </div>

    <div class="section">
      <h2>Alternative: Link to Viewer Page</h2>
      <p style="margin-bottom: 12px; color: #57606a;">If the HTML image map doesn't work in GitHub, use this markdown instead:</p>
      <div class="code-block"><code>[![Roadmap]({{.ImageURL}})]({{.ViewURL}})</code></div>
    </div>
  </div>
</body>
</html>
`
