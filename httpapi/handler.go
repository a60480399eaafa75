package httpapi

import (
	"net/http"
	"time"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/labstack/echo/v4"
)

// Handler serves the credential routes.
type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	if svc == nil {
		panic("httpapi: nil service")
	}
	return &Handler{svc: svc}
}

// Register mounts the credential routes on g. guard protects /me.
func Register(g *echo.Group, h *Handler, guard echo.MiddlewareFunc) {
	g.POST("/register", h.register)
	g.POST("/verify-email", h.verifyEmail)
	g.GET("/verify-email", h.verificationInfo)
	g.POST("/verify-email/resend", h.resendVerification)
	g.POST("/login", h.logIn)
	g.POST("/logout", h.logOut)
	g.POST("/refresh", h.refresh)
	g.POST("/password-reset", h.requestPasswordReset)
	g.GET("/password-reset", h.checkPasswordReset)
	g.POST("/password-reset/confirm", h.confirmPasswordReset)
	g.GET("/me", h.me, guard)
}

type registerRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	Nickname      string `json:"nickname"`
	Phone         string `json:"phone"`
	AcceptTerms   bool   `json:"accept_terms"`
	AcceptPrivacy bool   `json:"accept_privacy"`
}

type registerResponse struct {
	Account               marketAuth.PublicAccount `json:"account"`
	VerificationExpiresAt time.Time                `json:"verification_expires_at"`
	ResendCooldown        int64                    `json:"resend_cooldown"`
	VerificationToken     string                   `json:"verification_token,omitempty"`
}

type tokenRequest struct {
	Token     string `json:"token"`
	Challenge string `json:"challenge"`
}

type verificationInfoResponse struct {
	Email    string    `json:"email"`
	SentAt   time.Time `json:"sent_at"`
	Cooldown *int64    `json:"cooldown"`
}

type resendResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	Cooldown  int64     `json:"cooldown"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetRequest struct {
	Email     string `json:"email"`
	Challenge string `json:"challenge"`
}

type resetRequestResponse struct {
	Message  string `json:"message"`
	Cooldown int64  `json:"cooldown"`
}

type resetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, marketAuth.ErrInvalidRequest)
	}
	res, err := h.svc.Register(c.Request().Context(), marketAuth.RegisterRequest{
		Email:         req.Email,
		Password:      req.Password,
		Nickname:      req.Nickname,
		Phone:         req.Phone,
		AcceptTerms:   req.AcceptTerms,
		AcceptPrivacy: req.AcceptPrivacy,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, registerResponse{
		Account:               res.Account,
		VerificationExpiresAt: res.VerificationExpiresAt,
		ResendCooldown:        ceilSeconds(res.ResendCooldown),
		VerificationToken:     res.VerificationToken,
	})
}

func (h *Handler) verifyEmail(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, marketAuth.ErrVerificationInvalid)
	}
	res, err := h.svc.VerifyEmailByToken(c.Request().Context(), req.Token)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) verificationInfo(c echo.Context) error {
	info, err := h.svc.GetVerificationInfo(c.Request().Context(), c.QueryParam("token"))
	if err != nil {
		return writeError(c, err)
	}
	out := verificationInfoResponse{Email: info.Email, SentAt: info.SentAt}
	if info.Cooldown != nil {
		secs := ceilSeconds(*info.Cooldown)
		out.Cooldown = &secs
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) resendVerification(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, marketAuth.ErrVerificationInvalid)
	}
	res, err := h.svc.ResendVerificationEmail(c.Request().Context(), req.Token, req.Challenge)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resendResponse{
		Email:     res.Email,
		ExpiresAt: res.ExpiresAt,
		Cooldown:  ceilSeconds(res.Cooldown),
	})
}

func (h *Handler) logIn(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, marketAuth.ErrInvalidCredentials)
	}
	res, err := h.svc.LogIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) logOut(c echo.Context) error {
	var req refreshRequest
	_ = c.Bind(&req)
	h.svc.LogOut(c.Request().Context(), req.RefreshToken)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, marketAuth.ErrRefreshInvalid)
	}
	res, err := h.svc.RefreshAccessToken(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) requestPasswordReset(c echo.Context) error {
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, marketAuth.ErrInvalidRequest)
	}
	res, err := h.svc.SendPasswordResetEmail(c.Request().Context(), req.Email, req.Challenge)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, resetRequestResponse{
		Message:  res.Message,
		Cooldown: ceilSeconds(res.Cooldown),
	})
}

func (h *Handler) checkPasswordReset(c echo.Context) error {
	target, err := h.svc.VerifyPasswordResetToken(c.Request().Context(), c.QueryParam("token"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, target)
}

func (h *Handler) confirmPasswordReset(c echo.Context) error {
	var req resetConfirmRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, marketAuth.ErrResetInvalid)
	}
	if err := h.svc.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) me(c echo.Context) error {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		return writeError(c, marketAuth.ErrTokenInvalid)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"account_id": claims.AccountID,
		"verified":   claims.Verified,
	})
}
