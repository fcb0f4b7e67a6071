package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/pastemate/internal/expiration"
	"github.com/MarcoPoloResearchLab/pastemate/internal/pastes"
	"github.com/gin-gonic/gin"
)

type passwordRequestPayload struct {
	Password string `json:"password"`
}

type viewResponsePayload struct {
	Paste  pasteResponse `json:"paste"`
	Burned bool          `json:"burned"`
	Hits   int64         `json:"hits"`
}

type embedResponsePayload struct {
	Paste    pasteResponse `json:"paste"`
	ImageURL string        `json:"image_url,omitempty"`
}

func (h *httpHandler) handleCreatePaste(c *gin.Context) {
	var draft pastes.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		invalidRequest(c)
		return
	}
	paste, err := h.pastes.CreatePaste(c.Request.Context(), draft, viewerFrom(c))
	if err != nil {
		h.respondError(c, "create_paste", err)
		return
	}
	c.Header("Location", "/api/pastes/"+paste.ID)
	c.JSON(http.StatusCreated, h.toPasteResponse(paste, true))
}

// handleGetPaste serves the detail view. Protected pastes redirect non-authors to the password step.
func (h *httpHandler) handleGetPaste(c *gin.Context) {
	id := c.Param("id")
	view, err := h.pastes.GetForView(c.Request.Context(), id, viewerFrom(c))
	if err != nil {
		h.respondError(c, "get_paste", err)
		return
	}
	if view.PasswordRequired {
		c.Redirect(http.StatusSeeOther, "/api/pastes/"+id+"/password")
		return
	}
	h.respondView(c, view)
}

func (h *httpHandler) handlePasswordPrompt(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "password_required": true})
}

func (h *httpHandler) handleVerifyPassword(c *gin.Context) {
	var request passwordRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		invalidRequest(c)
		return
	}
	view, err := h.pastes.VerifyPassword(c.Request.Context(), c.Param("id"), viewerFrom(c), request.Password)
	if err != nil {
		h.respondError(c, "verify_password", err)
		return
	}
	if view.PasswordRejected {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "validation_failed",
			"fields":   gin.H{"password": "Wrong password."},
			"messages": []string{},
		})
		return
	}
	h.respondView(c, view)
}

func (h *httpHandler) respondView(c *gin.Context, view pastes.View) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, viewResponsePayload{
		Paste:  h.toPasteResponse(view.Paste, true),
		Burned: view.Burned,
		Hits:   view.Hits,
	})
}

func (h *httpHandler) handleRaw(c *gin.Context) {
	paste, err := h.pastes.GetRaw(c.Request.Context(), c.Param("id"), viewerFrom(c))
	if err != nil {
		h.respondError(c, "raw_paste", err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(paste.Content))
}

func (h *httpHandler) handleDownload(c *gin.Context) {
	download, err := h.pastes.Download(c.Request.Context(), c.Param("id"), viewerFrom(c))
	if err != nil {
		h.respondError(c, "download_paste", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+download.Filename+`"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", download.Content)
}

func (h *httpHandler) handleCloneSource(c *gin.Context) {
	prefill, err := h.pastes.CloneSource(c.Request.Context(), c.Param("id"), viewerFrom(c))
	if err != nil {
		h.respondError(c, "clone_source", err)
		return
	}
	c.JSON(http.StatusOK, prefill)
}

func (h *httpHandler) handleClone(c *gin.Context) {
	var draft pastes.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		invalidRequest(c)
		return
	}
	paste, err := h.pastes.ClonePaste(c.Request.Context(), c.Param("id"), draft, viewerFrom(c))
	if err != nil {
		h.respondError(c, "clone_paste", err)
		return
	}
	c.Header("Location", "/api/pastes/"+paste.ID)
	c.JSON(http.StatusCreated, h.toPasteResponse(paste, true))
}

func (h *httpHandler) handleEmbed(c *gin.Context) {
	embed, err := h.pastes.GetEmbed(c.Request.Context(), c.Param("id"), viewerFrom(c))
	if err != nil {
		h.respondError(c, "embed_paste", err)
		return
	}
	response := embedResponsePayload{Paste: h.toPasteResponse(embed.Paste, true)}
	if embed.ImageKey != "" {
		response.ImageURL = response.Paste.EmbedImageURL
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handlePrint(c *gin.Context) {
	paste, err := h.pastes.GetPrint(c.Request.Context(), c.Param("id"), viewerFrom(c))
	if err != nil {
		h.respondError(c, "print_paste", err)
		return
	}
	c.JSON(http.StatusOK, h.toPasteResponse(paste, true))
}

func (h *httpHandler) handleReport(c *gin.Context) {
	var input pastes.ReportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidRequest(c)
		return
	}
	report, err := h.pastes.ReportPaste(c.Request.Context(), c.Param("id"), input, viewerFrom(c))
	if err != nil {
		h.respondError(c, "report_paste", err)
		return
	}
	c.JSON(http.StatusCreated, toReportResponse(*report))
}

func (h *httpHandler) handleEditPrefill(c *gin.Context) {
	draft, err := h.pastes.EditPrefill(c.Request.Context(), c.Param("id"), viewerFrom(c))
	if err != nil {
		h.respondError(c, "edit_prefill", err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// handleUpdatePaste leaves the expiration date alone unless the body names a new one.
func (h *httpHandler) handleUpdatePaste(c *gin.Context) {
	draft := pastes.Draft{Expiration: expiration.NoChange}
	if err := c.ShouldBindJSON(&draft); err != nil {
		invalidRequest(c)
		return
	}
	paste, err := h.pastes.UpdatePaste(c.Request.Context(), c.Param("id"), draft, viewerFrom(c))
	if err != nil {
		h.respondError(c, "update_paste", err)
		return
	}
	c.JSON(http.StatusOK, h.toPasteResponse(paste, true))
}

func (h *httpHandler) handleDeletePaste(c *gin.Context) {
	if err := h.pastes.DeletePaste(c.Request.Context(), c.Param("id"), viewerFrom(c)); err != nil {
		h.respondError(c, "delete_paste", err)
		return
	}
	c.Status(http.StatusNoContent)
}
