package main

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/utils"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
	AgencyId int    `json:"agency_id"`
}

func sessionLifespan() time.Duration {
	hours := 24
	if raw := os.Getenv("TOKEN_HOUR_LIFESPAN"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			hours = parsed
		}
	}
	return time.Duration(hours) * time.Hour
}

// loginHandler verifies credentials, mints a JWT and registers it as a
// session token in Redis so the session middleware can resolve it.
func loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": utils.FormatValidationError(err)})
		return
	}

	ctx := c.Request.Context()
	user, err := models.GetUserByUsername(ctx, req.Username)
	if err != nil || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid credentials"})
		return
	}
	if !utils.DereferencePtr(user.IsActive, true) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "account disabled"})
		return
	}
	if err := user.VerifyPassword(req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid credentials"})
		return
	}

	token, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		config.LogError(config.GetLogger(), "auth", "loginHandler", "token generation failed", user.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not create session"})
		return
	}

	if err := config.SetRedisValue("Token:"+token, user.Username, sessionLifespan()); err != nil {
		config.LogError(config.GetLogger(), "auth", "loginHandler", "session store failed", user.Username, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "session store unavailable"})
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:    token,
		Username: user.Username,
		Role:     string(user.Role),
		AgencyId: user.AgencyId,
	})
}
