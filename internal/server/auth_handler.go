package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spark-dating/spark-server/internal/auth"
	"github.com/spark-dating/spark-server/internal/db"
	svcErr "github.com/spark-dating/spark-server/internal/errors"
)

type signupRequest struct {
	Name             string `json:"name" binding:"required"`
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required"`
	Age              int    `json:"age" binding:"required"`
	Gender           string `json:"gender" binding:"required,oneof=male female"`
	GenderPreference string `json:"genderPreference" binding:"required,oneof=male female both"`
}

// handleSignup validates the signup and parks it pending OTP verification.
// The code would go out by email; delivery is outside this service, so it
// is logged for the operator and, in development, returned in the response.
func (s *Server) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "all fields are required"})
		return
	}
	if req.Age < 18 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "you must be at least 18 years old"})
		return
	}
	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "password must be at least 6 characters"})
		return
	}

	if _, err := s.users.GetByEmail(c.Request.Context(), req.Email); err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "email already registered"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal server error"})
		return
	}

	otp, err := s.pending.Put(auth.PendingSignup{
		Name:             req.Name,
		Email:            req.Email,
		PasswordHash:     hash,
		Age:              req.Age,
		Gender:           req.Gender,
		GenderPreference: req.GenderPreference,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal server error"})
		return
	}

	s.appCtx.Logger.Info("signup pending verification", "email", req.Email)

	resp := gin.H{"success": true, "message": "verification code sent"}
	if s.cfg.App.ENV == "development" {
		resp["otp"] = otp
	}
	c.JSON(http.StatusOK, resp)
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required"`
}

// handleVerifyOTP promotes a pending signup into a real account and logs
// the new user in.
func (s *Server) handleVerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "email and otp are required"})
		return
	}

	pending, ok := s.pending.Verify(req.Email, req.OTP)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid or expired code"})
		return
	}

	user := &db.User{
		Name:             pending.Name,
		Email:            pending.Email,
		PasswordHash:     pending.PasswordHash,
		Age:              pending.Age,
		Gender:           pending.Gender,
		GenderPreference: pending.GenderPreference,
	}
	if err := s.users.Create(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal server error"})
		return
	}

	s.issueSession(c, user.ID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": publicUser(user)})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "all fields are required"})
		return
	}

	user, err := s.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid email or password"})
		return
	}

	s.issueSession(c, user.ID)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": publicUser(user)})
}

func (s *Server) handleLogout(c *gin.Context) {
	c.SetCookie("jwt", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out"})
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.users.GetByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": publicUser(user)})
}

func (s *Server) issueSession(c *gin.Context, userID uint64) {
	token, err := s.tokens.Sign(userID)
	if err != nil {
		s.appCtx.Logger.Error("failed to sign token", "user_id", userID, "err", err)
		return
	}
	secure := s.cfg.App.ENV != "development"
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie("jwt", token, int(s.cfg.JWT.TTL.Seconds()), "/", "", secure, true)
}

// publicUser strips credential fields from an API response.
func publicUser(u *db.User) gin.H {
	return gin.H{
		"id":               u.ID,
		"name":             u.Name,
		"email":            u.Email,
		"age":              u.Age,
		"gender":           u.Gender,
		"genderPreference": u.GenderPreference,
		"bio":              u.Bio,
		"image":            u.Image,
	}
}
