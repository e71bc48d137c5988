package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundvault/backend/internal/middleware"
	"github.com/soundvault/backend/internal/services"
)

type FavoriteHandler struct {
	favoriteService *services.FavoriteService
}

func NewFavoriteHandler(favoriteService *services.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{favoriteService: favoriteService}
}

func (h *FavoriteHandler) List(c *gin.Context) {
	songs, err := h.favoriteService.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": songs})
}

func (h *FavoriteHandler) Add(c *gin.Context) {
	songID, ok := parseID(c, "songId")
	if !ok {
		return
	}
	songs, err := h.favoriteService.Add(c.Request.Context(), middleware.UserID(c), songID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": songs})
}

func (h *FavoriteHandler) Remove(c *gin.Context) {
	songID, ok := parseID(c, "songId")
	if !ok {
		return
	}
	songs, err := h.favoriteService.Remove(c.Request.Context(), middleware.UserID(c), songID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": songs})
}
