package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-studio-backend/internal/domain"
	"github.com/tbourn/go-studio-backend/internal/http/middleware"
)

// LoginRequest is the JSON payload for POST /auth/login. Notaries must also
// send their registration code.
type LoginRequest struct {
	Email      string `json:"email" binding:"required" example:"mario.rossi@example.com"`
	Password   string `json:"password" binding:"required" example:"s3cret-pass"`
	NotaryCode *int   `json:"notary_code,omitempty" example:"4512"`
}

// LoginResponse carries the bearer token and the authenticated account.
type LoginResponse struct {
	Token      string      `json:"token"`
	TokenType  string      `json:"token_type" example:"Bearer"`
	ExpiresAt  time.Time   `json:"expires_at"`
	User       domain.User `json:"user"`
	EmployeeID *uint       `json:"employee_id,omitempty"`
	ClientID   *uint       `json:"client_id,omitempty"`
}

// MeResponse describes the authenticated account.
type MeResponse struct {
	User       domain.User `json:"user"`
	EmployeeID *uint       `json:"employee_id,omitempty"`
	ClientID   *uint       `json:"client_id,omitempty"`
}

// ChangePasswordRequest is the JSON payload for POST /auth/password.
type ChangePasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
	NotaryCode  *int   `json:"notary_code,omitempty"`
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Verifies the credentials and returns a bearer token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
// @Success     200  {object}  handlers.LoginResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password required")
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, req.NotaryCode)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LoginResponse{
		Token:      res.Token,
		TokenType:  "Bearer",
		ExpiresAt:  res.ExpiresAt,
		User:       res.User,
		EmployeeID: res.EmployeeID,
		ClientID:   res.ClientID,
	})
}

// ChangePassword godoc
// @ID          changePassword
// @Summary     Change a password
// @Tags        Auth
// @Accept      json
// @Param       body  body  handlers.ChangePasswordRequest  true  "Old and new password"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/password [post]
func (h *Handlers) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email, old_password and new_password required")
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), req.Email, req.OldPassword, req.NewPassword, req.NotaryCode); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// Me godoc
// @ID          currentUser
// @Summary     Current account
// @Description Returns the user behind the bearer token.
// @Tags        Auth
// @Produce     json
// @Security    Bearer
// @Success     200  {object}  handlers.MeResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	p, found := middleware.PrincipalFrom(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	acc, err := h.auth.CurrentUser(c.Request.Context(), p.UserID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MeResponse{User: acc.User, EmployeeID: acc.EmployeeID, ClientID: acc.ClientID})
}
