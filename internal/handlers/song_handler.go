package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/soundvault/backend/internal/middleware"
	"github.com/soundvault/backend/internal/models"
	"github.com/soundvault/backend/internal/services"
)

type SongHandler struct {
	songService *services.SongService
	maxUpload   int64
}

func NewSongHandler(songService *services.SongService, maxUpload int64) *SongHandler {
	return &SongHandler{songService: songService, maxUpload: maxUpload}
}

// List returns a page of songs. Unparseable paging values fall back to
// the defaults.
func (h *SongHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPageSize)))

	result, err := h.songService.List(c.Request.Context(), models.SongFilter{
		Page:   page,
		Limit:  limit,
		Genre:  c.Query("genre"),
		Artist: c.Query("artist"),
		Search: c.Query("search"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SongHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	song, err := h.songService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, services.NewSongView(*song))
}

// Create accepts a multipart form with an optional "audio" file, an
// optional "cover" image and the song metadata.
func (h *SongHandler) Create(c *gin.Context) {
	if err := parseMultipart(c, h.maxUpload); err != nil {
		respondError(c, err)
		return
	}

	audio, closeAudio, err := formFile(c, "audio")
	defer closeAudio()
	if err != nil {
		respondError(c, err)
		return
	}
	cover, closeCover, err := formFile(c, "cover")
	defer closeCover()
	if err != nil {
		respondError(c, err)
		return
	}

	duration, err := formInt(c, "duration")
	if err != nil {
		respondError(c, err)
		return
	}
	offline, err := formBool(c, "is_offline")
	if err != nil {
		respondError(c, err)
		return
	}

	song, err := h.songService.Create(c.Request.Context(), middleware.UserID(c), services.CreateSongInput{
		Title:     c.PostForm("title"),
		Artist:    c.PostForm("artist"),
		Album:     c.PostForm("album"),
		Genre:     c.PostForm("genre"),
		Duration:  duration,
		StreamURL: c.PostForm("stream_url"),
		IsOffline: offline,
		Audio:     audio,
		Cover:     cover,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, services.NewSongView(*song))
}

// Update applies a JSON patch of the editable song fields.
func (h *SongHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var patch models.SongPatch
	if !bindJSON(c, &patch) {
		return
	}

	song, err := h.songService.Update(c.Request.Context(), middleware.UserID(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, services.NewSongView(*song))
}

func (h *SongHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.songService.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Song deleted successfully"})
}
