package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Routes bundles the handlers and the middleware the route table needs.
type Routes struct {
	Auth      *AuthHandler
	Songs     *SongHandler
	Playlists *PlaylistHandler
	Favorites *FavoriteHandler
	Media     *MediaHandler
	Stats     *StatsHandler

	// RequireAuth rejects anonymous requests; OptionalAuth identifies the
	// caller when a token is present.
	RequireAuth  gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	// UploadLimit runs after RequireAuth on the create endpoints.
	UploadLimit gin.HandlerFunc
}

// Register mounts the API on router.
func (r Routes) Register(router gin.IRouter) {
	uploadLimit := r.UploadLimit
	if uploadLimit == nil {
		uploadLimit = func(c *gin.Context) { c.Next() }
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/media/:id", r.Media.Stream)
	router.HEAD("/media/:id", r.Media.Stream)
	router.POST("/media/:id/play", r.Media.RecordPlay)

	api := router.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		api.GET("/stream/:id", r.Media.Stream)
		api.HEAD("/stream/:id", r.Media.Stream)

		auth := api.Group("/auth")
		{
			auth.POST("/register", r.Auth.Register)
			auth.POST("/login", r.Auth.Login)
			auth.POST("/refresh", r.Auth.RefreshToken)
			auth.POST("/logout", r.RequireAuth, r.Auth.Logout)
			auth.GET("/me", r.RequireAuth, r.Auth.Me)
		}

		songs := api.Group("/songs")
		{
			songs.GET("", r.Songs.List)
			songs.GET("/:id", r.Songs.Get)
			songs.GET("/:id/cover", r.Media.SongCover)
			songs.HEAD("/:id/cover", r.Media.SongCover)
			songs.POST("/:id/play", r.Media.RecordPlay)
			songs.POST("", r.RequireAuth, uploadLimit, r.Songs.Create)
			songs.PUT("/:id", r.RequireAuth, r.Songs.Update)
			songs.DELETE("/:id", r.RequireAuth, r.Songs.Delete)
		}

		playlists := api.Group("/playlists")
		{
			playlists.GET("", r.RequireAuth, r.Playlists.ListMine)
			playlists.POST("", r.RequireAuth, uploadLimit, r.Playlists.Create)
			playlists.GET("/:id", r.OptionalAuth, r.Playlists.Get)
			playlists.GET("/:id/cover", r.Media.PlaylistCover)
			playlists.HEAD("/:id/cover", r.Media.PlaylistCover)
			playlists.PUT("/:id", r.RequireAuth, r.Playlists.Update)
			playlists.DELETE("/:id", r.RequireAuth, r.Playlists.Delete)
			playlists.POST("/:id/songs", r.RequireAuth, r.Playlists.AddSong)
			playlists.DELETE("/:id/songs/:songId", r.RequireAuth, r.Playlists.RemoveSong)
		}

		favorites := api.Group("/favorites")
		favorites.Use(r.RequireAuth)
		{
			favorites.GET("", r.Favorites.List)
			favorites.POST("/:songId", r.Favorites.Add)
			favorites.DELETE("/:songId", r.Favorites.Remove)
		}

		api.GET("/stats", r.RequireAuth, r.Stats.Get)
	}
}
