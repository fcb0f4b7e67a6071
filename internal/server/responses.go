package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/blobstore"
	"github.com/MarcoPoloResearchLab/pastemate/internal/highlight"
	"github.com/MarcoPoloResearchLab/pastemate/internal/pastes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type pasteResponse struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Content        string     `json:"content,omitempty"`
	ContentHTML    string     `json:"content_html,omitempty"`
	Syntax         string     `json:"syntax"`
	SyntaxName     string     `json:"syntax_name"`
	Exposure       string     `json:"exposure"`
	ExposureLabel  string     `json:"exposure_label"`
	ExpirationDate *time.Time `json:"expiration_date"`
	HasPassword    bool       `json:"has_password"`
	BurnAfterRead  bool       `json:"burn_after_read"`
	Filesize       int        `json:"filesize"`
	EmbedImageURL  string     `json:"embeddable_image_url,omitempty"`
	AuthorID       *string    `json:"author_id"`
	FolderID       *string    `json:"folder_id"`
	Created        time.Time  `json:"created"`
	Modified       time.Time  `json:"modified"`
}

type pageResponse struct {
	Pastes      []pasteResponse `json:"pastes"`
	Page        int             `json:"page"`
	PageSize    int             `json:"page_size"`
	TotalPages  int             `json:"total_pages"`
	TotalItems  int64           `json:"total_items"`
	HasNext     bool            `json:"has_next"`
	HasPrevious bool            `json:"has_previous"`
}

type folderResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	PasteCount int64  `json:"paste_count"`
}

type reportResponse struct {
	ID           uint       `json:"id"`
	PasteID      string     `json:"paste_id"`
	Reason       string     `json:"reason"`
	ReporterName string     `json:"reporter_name"`
	Moderated    bool       `json:"moderated"`
	ModeratedBy  *string    `json:"moderated_by"`
	ModeratedAt  *time.Time `json:"moderated_at"`
	Created      time.Time  `json:"created"`
}

// toPasteResponse serialises paste. Listings pass withContent=false to keep pages small.
func (h *httpHandler) toPasteResponse(paste *pastes.Paste, withContent bool) pasteResponse {
	response := pasteResponse{
		ID:             paste.ID,
		Title:          paste.Title,
		Syntax:         paste.Syntax,
		SyntaxName:     highlight.Name(paste.Syntax),
		Exposure:       string(paste.Exposure),
		ExposureLabel:  paste.Exposure.Label(),
		ExpirationDate: paste.ExpirationDate,
		HasPassword:    paste.HasPassword(),
		BurnAfterRead:  paste.BurnAfterRead,
		Filesize:       paste.Filesize,
		AuthorID:       paste.AuthorID,
		FolderID:       paste.FolderID,
		Created:        paste.CreatedAt,
		Modified:       paste.UpdatedAt,
	}
	if paste.EmbeddableImage != "" {
		response.EmbedImageURL = blobstore.URLFor(h.mediaBaseURL, paste.EmbeddableImage)
	}
	if withContent {
		response.Content = paste.Content
		response.ContentHTML = paste.ContentHTML
	}
	return response
}

func (h *httpHandler) toPageResponse(page pastes.Page) pageResponse {
	response := pageResponse{
		Pastes:      make([]pasteResponse, 0, len(page.Pastes)),
		Page:        page.Number,
		PageSize:    page.Size,
		TotalPages:  page.TotalPages,
		TotalItems:  page.TotalItems,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
	}
	for index := range page.Pastes {
		response.Pastes = append(response.Pastes, h.toPasteResponse(&page.Pastes[index], false))
	}
	return response
}

func toFolderResponses(folders []pastes.FolderSummary) []folderResponse {
	response := make([]folderResponse, 0, len(folders))
	for _, folder := range folders {
		response = append(response, folderResponse{
			ID:         folder.ID,
			Name:       folder.Name,
			Slug:       folder.Slug,
			PasteCount: folder.PasteCount,
		})
	}
	return response
}

func toReportResponse(report pastes.Report) reportResponse {
	return reportResponse{
		ID:           report.ID,
		PasteID:      report.PasteID,
		Reason:       report.Reason,
		ReporterName: report.ReporterName,
		Moderated:    report.Moderated,
		ModeratedBy:  report.ModeratedBy,
		ModeratedAt:  report.ModeratedAt,
		Created:      report.CreatedAt,
	}
}

// respondError maps service errors onto HTTP responses. Access denials and missing pastes
// share the 404 body.
func (h *httpHandler) respondError(c *gin.Context, operation string, err error) {
	var validationErr *pastes.ValidationError
	switch {
	case errors.Is(err, pastes.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.As(err, &validationErr):
		fields := validationErr.Fields
		if fields == nil {
			fields = map[string]string{}
		}
		messages := validationErr.Messages
		if messages == nil {
			messages = []string{}
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "fields": fields, "messages": messages})
	default:
		h.logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func invalidRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
}

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(strings.TrimSpace(c.Query("page")))
	if err != nil {
		return 1
	}
	return page
}

func boolParam(c *gin.Context, name string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.Query(name)))
	return err == nil && value
}
