package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rocketstack/roadmapper/internal/roadmap"
	"github.com/rocketstack/roadmapper/internal/telemetry"
)

// roadmapSVG serves the rendered roadmap image. The optional :bg and :text
// segments are hex colors; RenderSVG falls back to the default palette for
// anything that fails validation, so legacy URLs like /:owner/:repo/dark
// still render.
func (h *Handlers) roadmapSVG(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")

	issues, err := h.cache.FetchIssues(c.Request.Context(), owner, repo, cacheTTL(c))
	if err != nil {
		c.String(http.StatusInternalServerError, "Error fetching GitHub issues")
		return
	}

	svg := roadmap.RenderSVG(issues, c.Param("bg"), c.Param("text"))
	telemetry.RendersTotal.WithLabelValues("svg").Inc()

	c.Header("Cache-Control", "s-maxage=60, stale-while-revalidate")
	c.Data(http.StatusOK, "image/svg+xml", []byte(svg))
}
