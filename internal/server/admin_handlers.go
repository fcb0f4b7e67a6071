package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/pastemate/internal/pastes"
	"github.com/gin-gonic/gin"
)

type reportIDsPayload struct {
	IDs []uint `json:"ids"`
}

func (h *httpHandler) handleListReports(c *gin.Context) {
	var filter pastes.ReportFilter
	if raw := strings.TrimSpace(c.Query("moderated")); raw != "" {
		moderated, err := strconv.ParseBool(raw)
		if err != nil {
			invalidRequest(c)
			return
		}
		filter.Moderated = &moderated
	}
	reports, err := h.pastes.ListReports(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "list_reports", err)
		return
	}
	response := make([]reportResponse, 0, len(reports))
	for _, report := range reports {
		response = append(response, toReportResponse(report))
	}
	c.JSON(http.StatusOK, gin.H{"reports": response})
}

func (h *httpHandler) handleModerateReports(c *gin.Context) {
	ids, ok := bindReportIDs(c)
	if !ok {
		return
	}
	updated, err := h.pastes.MarkReportsModerated(c.Request.Context(), ids, viewerFrom(c))
	if err != nil {
		h.respondError(c, "moderate_reports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *httpHandler) handleUnmoderateReports(c *gin.Context) {
	ids, ok := bindReportIDs(c)
	if !ok {
		return
	}
	updated, err := h.pastes.MarkReportsUnmoderated(c.Request.Context(), ids)
	if err != nil {
		h.respondError(c, "unmoderate_reports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *httpHandler) handleDeactivateReports(c *gin.Context) {
	ids, ok := bindReportIDs(c)
	if !ok {
		return
	}
	deactivated, err := h.pastes.DeactivateReportedPastes(c.Request.Context(), ids, viewerFrom(c))
	if err != nil {
		h.respondError(c, "deactivate_reports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deactivated": deactivated})
}

func bindReportIDs(c *gin.Context) ([]uint, bool) {
	var request reportIDsPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.IDs) == 0 {
		invalidRequest(c)
		return nil, false
	}
	return request.IDs, true
}
