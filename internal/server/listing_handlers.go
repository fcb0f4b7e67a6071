package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/pastemate/internal/expiration"
	"github.com/MarcoPoloResearchLab/pastemate/internal/highlight"
	"github.com/gin-gonic/gin"
)

type folderRequestPayload struct {
	Name string `json:"name"`
}

type userListingResponse struct {
	Username  string           `json:"username"`
	OwnerView bool             `json:"owner_view"`
	Hits      int64            `json:"hits"`
	Page      pageResponse     `json:"page"`
	Stats     *statsResponse   `json:"stats,omitempty"`
	Folders   []folderResponse `json:"folders,omitempty"`
}

type statsResponse struct {
	Total    int64 `json:"total"`
	Public   int64 `json:"public"`
	Unlisted int64 `json:"unlisted"`
	Private  int64 `json:"private"`
}

type languageUsageResponse struct {
	Syntax string `json:"syntax"`
	Name   string `json:"name"`
	Used   int64  `json:"used"`
}

func (h *httpHandler) handleLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": highlight.LanguagesVersion, "languages": highlight.Languages})
}

func (h *httpHandler) handleExpirations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"choices": expiration.Choices(boolParam(c, "update"))})
}

func (h *httpHandler) handleArchive(c *gin.Context) {
	limit, err := strconv.Atoi(strings.TrimSpace(c.Query("limit")))
	if err != nil {
		limit = 0
	}
	archive, err := h.pastes.ListPublicArchive(c.Request.Context(), c.Query("syntax"), limit)
	if err != nil {
		h.respondError(c, "archive", err)
		return
	}
	response := make([]pasteResponse, 0, len(archive))
	for index := range archive {
		response = append(response, h.toPasteResponse(&archive[index], false))
	}
	c.JSON(http.StatusOK, gin.H{"pastes": response})
}

func (h *httpHandler) handleLanguageStats(c *gin.Context) {
	usage, err := h.pastes.LanguageStats(c.Request.Context())
	if err != nil {
		h.respondError(c, "language_stats", err)
		return
	}
	response := make([]languageUsageResponse, 0, len(usage))
	for _, entry := range usage {
		response = append(response, languageUsageResponse{Syntax: entry.Syntax, Name: entry.Name, Used: entry.Used})
	}
	c.JSON(http.StatusOK, gin.H{"languages": response})
}

func (h *httpHandler) handleUserPastes(c *gin.Context) {
	listing, err := h.pastes.ListUserPastes(c.Request.Context(), c.Param("username"), viewerFrom(c), boolParam(c, "guest"), pageParam(c))
	if err != nil {
		h.respondError(c, "user_pastes", err)
		return
	}
	response := userListingResponse{
		Username:  listing.Username,
		OwnerView: listing.OwnerView,
		Hits:      listing.Hits,
		Page:      h.toPageResponse(listing.Page),
	}
	if listing.Stats != nil {
		response.Stats = &statsResponse{
			Total:    listing.Stats.Total,
			Public:   listing.Stats.Public,
			Unlisted: listing.Stats.Unlisted,
			Private:  listing.Stats.Private,
		}
		response.Folders = toFolderResponses(listing.Folders)
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleFolderPastes(c *gin.Context) {
	listing, err := h.pastes.ListFolderPastes(c.Request.Context(), c.Param("username"), c.Param("slug"), viewerFrom(c), pageParam(c))
	if err != nil {
		h.respondError(c, "folder_pastes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"folder": folderResponse{ID: listing.Folder.ID, Name: listing.Folder.Name, Slug: listing.Folder.Slug, PasteCount: listing.Page.TotalItems},
		"page":   h.toPageResponse(listing.Page),
	})
}

func (h *httpHandler) handleListFolders(c *gin.Context) {
	folders, err := h.pastes.ListFolders(c.Request.Context(), viewerFrom(c))
	if err != nil {
		h.respondError(c, "list_folders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": toFolderResponses(folders)})
}

func (h *httpHandler) handleCreateFolder(c *gin.Context) {
	var request folderRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		invalidRequest(c)
		return
	}
	folder, err := h.pastes.CreateFolder(c.Request.Context(), viewerFrom(c), request.Name)
	if err != nil {
		h.respondError(c, "create_folder", err)
		return
	}
	c.JSON(http.StatusCreated, folderResponse{ID: folder.ID, Name: folder.Name, Slug: folder.Slug})
}

func (h *httpHandler) handleRenameFolder(c *gin.Context) {
	var request folderRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		invalidRequest(c)
		return
	}
	folder, err := h.pastes.RenameFolder(c.Request.Context(), viewerFrom(c), c.Param("slug"), request.Name)
	if err != nil {
		h.respondError(c, "rename_folder", err)
		return
	}
	c.JSON(http.StatusOK, folderResponse{ID: folder.ID, Name: folder.Name, Slug: folder.Slug})
}

func (h *httpHandler) handleDeleteFolder(c *gin.Context) {
	if err := h.pastes.DeleteFolder(c.Request.Context(), viewerFrom(c), c.Param("slug")); err != nil {
		h.respondError(c, "delete_folder", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSearch(c *gin.Context) {
	page, err := h.pastes.SearchOwnPastes(c.Request.Context(), viewerFrom(c), c.Query("q"), pageParam(c))
	if err != nil {
		h.respondError(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, h.toPageResponse(page))
}

func (h *httpHandler) handleBackup(c *gin.Context) {
	backup, err := h.pastes.BuildBackup(c.Request.Context(), viewerFrom(c))
	if err != nil {
		h.respondError(c, "backup", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+backup.Filename+`"`)
	c.Data(http.StatusOK, "application/zip", backup.Data)
}
