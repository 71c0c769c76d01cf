package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dashboard/internal/auth"
	"dashboard/internal/session"
	"dashboard/internal/validation"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=3"`
}

var loginMessages = validation.Messages{
	"email.required":    "Email is required",
	"email.email":       "Please enter a valid email address",
	"password.required": "Password is required",
	"password.min":      "Password must be at least 3 characters long",
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenResponse struct {
	auth.TokenPair
	ExpiresAt int64       `json:"expires_at"`
	Session   sessionView `json:"session"`
}

// sessionView is what clients see of a session; the backend token stays server side.
type sessionView struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	InstructorID int64     `json:"instructorId"`
	DisplayName  string    `json:"displayName,omitempty"`
	CurrentPage  string    `json:"currentPage"`
	ShowWelcome  bool      `json:"showWelcome"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func viewOf(s session.Session) sessionView {
	return sessionView{
		ID:           s.ID,
		Email:        s.Email,
		InstructorID: s.InstructorID,
		DisplayName:  s.DisplayName,
		CurrentPage:  s.CurrentPage,
		ShowWelcome:  s.ShowWelcome,
		ExpiresAt:    s.ExpiresAt,
	}
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.Validator.Check(req, loginMessages); err != nil {
		h.fail(c, err)
		return
	}

	ident, err := h.Backend.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.Log.Info("login rejected", zap.String("email", req.Email), zap.Error(err))
		h.fail(c, err)
		return
	}
	s, err := h.Sessions.Establish(c.Request.Context(), ident)
	if err != nil {
		h.fail(c, err)
		return
	}
	pair, err := h.Issuer.Issue(s.ID, s.ExpiresAt)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{TokenPair: pair, ExpiresAt: pair.AccessExp.Unix(), Session: viewOf(s)})
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.Validator.Check(req, validation.Messages{"refresh_token": "Refresh token is required"}); err != nil {
		h.fail(c, err)
		return
	}
	claims, err := h.Issuer.Parse(req.RefreshToken, auth.KindRefresh)
	if err != nil {
		auth.Reject(c, "invalid refresh token")
		return
	}
	s, err := h.Sessions.Get(c.Request.Context(), claims.Subject)
	if errors.Is(err, session.ErrNotFound) {
		auth.Reject(c, "session expired, please log in again")
		return
	}
	if err != nil {
		h.Log.Warn("session lookup failed", zap.Error(err))
		auth.Unavailable(c)
		return
	}
	pair, err := h.Issuer.Issue(s.ID, s.ExpiresAt)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{TokenPair: pair, ExpiresAt: pair.AccessExp.Unix(), Session: viewOf(s)})
}

func (h *Handler) logout(c *gin.Context) {
	s := h.session(c)
	if err := h.Sessions.Clear(c.Request.Context(), s.ID, "logout"); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirect": auth.LoginPath})
}

func (h *Handler) currentSession(c *gin.Context) {
	c.JSON(http.StatusOK, viewOf(h.session(c)))
}
