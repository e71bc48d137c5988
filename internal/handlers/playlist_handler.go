package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundvault/backend/internal/middleware"
	"github.com/soundvault/backend/internal/models"
	"github.com/soundvault/backend/internal/services"
)

type PlaylistHandler struct {
	playlistService *services.PlaylistService
	maxUpload       int64
}

func NewPlaylistHandler(playlistService *services.PlaylistService, maxUpload int64) *PlaylistHandler {
	return &PlaylistHandler{playlistService: playlistService, maxUpload: maxUpload}
}

// ListMine returns the caller's playlists.
func (h *PlaylistHandler) ListMine(c *gin.Context) {
	playlists, err := h.playlistService.ListMine(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlists": playlists})
}

// Create accepts a multipart form with name, description, is_public and
// an optional "cover" image.
func (h *PlaylistHandler) Create(c *gin.Context) {
	if err := parseMultipart(c, h.maxUpload); err != nil {
		respondError(c, err)
		return
	}
	cover, closeCover, err := formFile(c, "cover")
	defer closeCover()
	if err != nil {
		respondError(c, err)
		return
	}
	public, err := formBool(c, "is_public")
	if err != nil {
		respondError(c, err)
		return
	}

	playlist, err := h.playlistService.Create(c.Request.Context(), middleware.UserID(c), services.CreatePlaylistInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		IsPublic:    public,
		Cover:       cover,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, playlist)
}

func (h *PlaylistHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	playlist, err := h.playlistService.Get(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, playlist)
}

func (h *PlaylistHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var patch models.PlaylistPatch
	if !bindJSON(c, &patch) {
		return
	}
	playlist, err := h.playlistService.Update(c.Request.Context(), middleware.UserID(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, playlist)
}

func (h *PlaylistHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.playlistService.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playlist deleted successfully"})
}

func (h *PlaylistHandler) AddSong(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		SongID string `json:"song_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	songID, ok := parseUUID(c, "song_id", req.SongID)
	if !ok {
		return
	}

	playlist, err := h.playlistService.AddSong(c.Request.Context(), middleware.UserID(c), id, songID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, playlist)
}

func (h *PlaylistHandler) RemoveSong(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	songID, ok := parseID(c, "songId")
	if !ok {
		return
	}

	playlist, err := h.playlistService.RemoveSong(c.Request.Context(), middleware.UserID(c), id, songID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, playlist)
}
