package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundvault/backend/internal/errs"
	"github.com/soundvault/backend/internal/media"
	"github.com/soundvault/backend/internal/metrics"
	"github.com/soundvault/backend/internal/services"
)

// MediaHandler serves stored bytes with byte-range support and records
// plays.
type MediaHandler struct {
	locator     *media.Locator
	songService *services.SongService
}

func NewMediaHandler(locator *media.Locator, songService *services.SongService) *MediaHandler {
	return &MediaHandler{locator: locator, songService: songService}
}

// Stream serves a song's audio. GET and HEAD.
func (h *MediaHandler) Stream(c *gin.Context) {
	h.serve(c, media.KindAudio)
}

func (h *MediaHandler) SongCover(c *gin.Context) {
	h.serve(c, media.KindCover)
}

func (h *MediaHandler) PlaylistCover(c *gin.Context) {
	h.serve(c, media.KindPlaylistCover)
}

func (h *MediaHandler) serve(c *gin.Context, kind media.Kind) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	res, err := h.locator.Locate(c.Request.Context(), kind, id)
	if err != nil {
		respondError(c, err)
		return
	}

	plan, err := media.Negotiate(c.GetHeader("Range"), res.Size)
	if err != nil {
		if errors.Is(err, errs.ErrRangeNotSatisfiable) {
			c.Header("Content-Range", media.UnsatisfiedRange(res.Size))
			metrics.RecordStream(http.StatusRequestedRangeNotSatisfiable, 0)
		}
		respondError(c, err)
		return
	}

	// Serve logs stream aborts itself. Only an open failure leaves the
	// response free for an error body.
	if err := media.Serve(c.Writer, c.Request, plan, res); err != nil {
		if errors.Is(err, media.ErrSourceOpen) {
			respondError(c, err)
			return
		}
		c.Abort()
	}
}

// RecordPlay counts one playback of a song and returns the new total.
func (h *MediaHandler) RecordPlay(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	plays, err := h.songService.RecordPlay(c.Request.Context(), id)
	if err != nil {
		respondError(c, fmt.Errorf("record play: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"plays": plays})
}
