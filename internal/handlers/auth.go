package handlers

import (
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/dordunu1/taskboard/internal/auth"
	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/dto"
	"github.com/dordunu1/taskboard/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthOptions are the cookie and redirect settings of AuthHandler.
type AuthOptions struct {
	CookieSecure bool
	// SuccessRedirect is where the browser lands after Google sign-in.
	SuccessRedirect string
}

// AuthHandler handles sign-up, sign-in, sign-out and password reset.
type AuthHandler struct {
	sessions *auth.Store
	users    UserService
	boards   Boards
	google   GoogleFlow
	opts     AuthOptions
}

// NewAuthHandler returns a new AuthHandler. google may be nil when Google
// sign-in is not configured.
func NewAuthHandler(sessions *auth.Store, users UserService, boards Boards, google GoogleFlow, opts AuthOptions) *AuthHandler {
	return &AuthHandler{sessions: sessions, users: users, boards: boards, google: google, opts: opts}
}

func (h *AuthHandler) startSession(c *gin.Context, u dom.User) bool {
	sessionID, err := h.sessions.Create(c.Request.Context(), u.Identity())
	if err != nil {
		log.Printf("create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, sessionID, int(h.sessions.TTL().Seconds()), "/", "", h.opts.CookieSecure, true)
	return true
}

// Login godoc
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "Credentials"
// @Success      200   {object}  dto.UserResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.users.ValidateCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

// Register godoc
// @Summary      Register
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterRequest  true  "Account"
// @Success      201   {object}  dto.UserResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.users.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(c, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, userToResponse(user))
}

// Logout godoc
// @Summary      Logout
// @Description  Ends the session and closes its live board subscription.
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID, err := c.Cookie(auth.CookieName)
	if err == nil && sessionID != "" {
		_ = h.sessions.Delete(c.Request.Context(), sessionID)
		h.boards.Release(sessionID)
	}
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.opts.CookieSecure, true)
	c.Status(http.StatusNoContent)
}

// Me godoc
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  dto.UserResponse
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	u, err := h.users.GetByID(c.Request.Context(), sess.Identity.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(u))
}

// ForgotPassword godoc
// @Summary      Request a password reset mail
// @Description  Always answers 202 so the response does not reveal whether the address has an account.
// @Tags         auth
// @Accept       json
// @Param        body  body  dto.ForgotPasswordRequest  true  "Email"
// @Success      202
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /auth/password/forgot [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrResetUnavailable) {
			writeError(c, err)
			return
		}
		log.Printf("password reset request: %v", err)
	}
	c.Status(http.StatusAccepted)
}

// ResetPassword godoc
// @Summary      Set a new password with a reset token
// @Tags         auth
// @Accept       json
// @Param        body  body  dto.ResetPasswordRequest  true  "Token and new password"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Router       /auth/password/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, service.ErrInvalidResetToken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidResetToken.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GoogleLogin godoc
// @Summary      Start Google sign-in
// @Tags         auth
// @Success      302
// @Failure      404  {object}  map[string]string
// @Router       /auth/google/login [get]
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "google sign-in is not enabled"})
		return
	}
	u, err := h.google.AuthURL(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}

// GoogleCallback godoc
// @Summary      Finish Google sign-in
// @Tags         auth
// @Param        state  query  string  true  "OAuth state"
// @Param        code   query  string  true  "Authorization code"
// @Success      302
// @Failure      400  {object}  map[string]string
// @Router       /auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "google sign-in is not enabled"})
		return
	}
	if e := c.Query("error"); e != "" {
		h.redirectWithError(c, e)
		return
	}
	ctx := c.Request.Context()
	p, err := h.google.Exchange(ctx, c.Query("state"), c.Query("code"))
	if err != nil {
		if errors.Is(err, auth.ErrStateInvalid) || errors.Is(err, auth.ErrEmailNotVerified) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("google sign-in: %v", err)
		h.redirectWithError(c, "sign_in_failed")
		return
	}
	user, err := h.users.SignInFederated(ctx, dom.ProviderGoogle, p.Email, p.Name, p.Picture)
	if err != nil {
		writeError(c, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.Redirect(http.StatusFound, h.opts.SuccessRedirect)
}

func (h *AuthHandler) redirectWithError(c *gin.Context, code string) {
	target := h.opts.SuccessRedirect
	if u, err := url.Parse(target); err == nil {
		q := u.Query()
		q.Set("auth_error", code)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	c.Redirect(http.StatusFound, target)
}
