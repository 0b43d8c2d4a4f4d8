package handler

import (
	"io"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushub/auth-api/internal/service"
	appErrors "github.com/campushub/auth-api/pkg/errors"
	"github.com/campushub/auth-api/pkg/response"
)

// AdminHandler exposes administrative endpoints for the audit trail.
type AdminHandler struct {
	exports *service.ExportService
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(exports *service.ExportService) *AdminHandler {
	return &AdminHandler{exports: exports}
}

// ExportAuditLogs godoc
// @Summary Export audit logs
// @Description Render recent audit entries to CSV and return a signed download token
// @Tags Admin
// @Produce json
// @Param window query string false "Lookback window, Go duration format (default 24h)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/audit-exports [post]
func (h *AdminHandler) ExportAuditLogs(c *gin.Context) {
	window := 24 * time.Hour
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid window duration"))
			return
		}
		window = parsed
	}

	res, err := h.exports.ExportAuditLogs(c.Request.Context(), window)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// DownloadExport godoc
// @Summary Download an audit export
// @Description Stream a previously exported CSV file; the signed token is the authorization
// @Tags Admin
// @Produce text/csv
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/audit-exports/download [get]
func (h *AdminHandler) DownloadExport(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing download token"))
		return
	}

	file, filename, err := h.exports.OpenDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", `attachment; filename="`+path.Base(filename)+`"`)
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
