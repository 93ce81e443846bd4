package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewApi mounts the read-only posts API under /api.
func NewApi(router gin.IRouter, posts *PostsHandler) {
	postsV1 := router.Group("/api/posts/v1")
	{
		postsV1.GET("", posts.GetPosts)
		postsV1.GET("/", posts.GetPosts)
		postsV1.GET("/:postId", posts.GetPost)
	}
}

// ServeSite serves the generated site for every path no other route claims.
func ServeSite(router *gin.Engine, siteDir string) {
	files := http.FileServer(http.Dir(siteDir))
	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.AbortWithStatus(http.StatusMethodNotAllowed)
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	})
}
