package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	svcErr "github.com/spark-dating/spark-server/internal/errors"
)

func (s *Server) handleSwipeRight(c *gin.Context) {
	targetID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "userId must be a valid id"})
		return
	}

	view, matchFormed, err := s.swipes.Like(c.Request.Context(), currentUserID(c), targetID)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": view, "matchFormed": matchFormed})
}

func (s *Server) handleSwipeLeft(c *gin.Context) {
	targetID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "userId must be a valid id"})
		return
	}

	view, err := s.swipes.Dislike(c.Request.Context(), currentUserID(c), targetID)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": view})
}

func (s *Server) handleGetMatches(c *gin.Context) {
	profiles, err := s.swipes.Matches(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "matches": profiles})
}

func (s *Server) handleGetProfiles(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	users, err := s.swipes.Candidates(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(users))
	for i := range users {
		out = append(out, publicUser(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": out})
}

type updateProfileRequest struct {
	Bio   *string `json:"bio"`
	Image *string `json:"image"`
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid body"})
		return
	}

	updates := map[string]interface{}{}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.Image != nil {
		updates["image"] = *req.Image
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "nothing to update"})
		return
	}

	user, err := s.users.UpdateProfile(c.Request.Context(), currentUserID(c), updates)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": publicUser(user)})
}
