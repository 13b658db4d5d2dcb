package handlers

import (
	"net/http"

	"authtrail/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "authtrail is running",
	})
}

func Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "home"})
}

// Dashboard is only reachable with a valid session.
func Dashboard(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"page":  "dashboard",
		"email": p.Email,
	})
}
