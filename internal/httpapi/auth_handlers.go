package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"vendoor.org/internal/audit"
	"vendoor.org/internal/auth"
	"vendoor.org/internal/obs"
)

type signupRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Password    string `json:"password"`
	Role        string `json:"role,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type verifyOTPRequest struct {
	Challenge string `json:"challenge,omitempty"`
	Code      string `json:"code"`
}

type userResponse struct {
	ID            string    `json:"id"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	PhoneNumber   string    `json:"phone_number,omitempty"`
	Role          string    `json:"role"`
	Status        string    `json:"status"`
	EmailVerified bool      `json:"email_verified"`
	PhoneVerified bool      `json:"phone_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

type grantResponse struct {
	TokenType        string     `json:"token_type,omitempty"`
	AccessToken      string     `json:"access_token,omitempty"`
	AccessExpiresAt  *time.Time `json:"access_expires_at,omitempty"`
	RefreshToken     string     `json:"refresh_token,omitempty"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`
	SessionExpiresAt *time.Time `json:"session_expires_at,omitempty"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:            u.ID,
		FullName:      u.FullName,
		Email:         u.Email,
		PhoneNumber:   u.PhoneNumber,
		Role:          u.Role,
		Status:        u.Status,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		CreatedAt:     u.CreatedAt,
	}
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.auth.SignUp(r.Context(), auth.NewUser{
		FullName:    req.FullName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		Role:        req.Role,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{
		"user_id": user.ID,
		"role":    user.Role,
	})
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	meta := auth.SessionMetadata{
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
	}
	grant, user, err := a.auth.Login(r.Context(), req.Email, req.Password, meta)
	if err != nil {
		switch {
		case isDenied(err):
			obs.CountLogin("denied")
		default:
			obs.CountLogin("error")
		}
		handleAuthError(w, r, err)
		return
	}
	obs.CountLogin("ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":  user.ID,
		"strategy": string(a.auth.Strategy()),
	})
	a.writeGrant(w, r, grant)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	presented, ok := auth.CredentialFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.auth.Logout(r.Context(), presented); err != nil {
		handleAuthError(w, r, err)
		return
	}
	obs.CountRevoked(string(a.auth.Strategy()))
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	a.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.auth.LogoutAll(r.Context(), principal.User.ID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout_all", nil)
	a.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	presented := refreshFromRequest(w, r)
	if presented == "" {
		writeError(w, r, http.StatusBadRequest, "refresh token is required")
		return
	}
	meta := auth.SessionMetadata{
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
	}
	grant, err := a.auth.Refresh(r.Context(), presented, meta)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.refresh", nil)
	a.writeGrant(w, r, grant)
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		handleAuthError(w, r, err)
		return
	}
	// Same response whether or not the account exists.
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
	})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		handleAuthError(w, r, err)
		return
	}
	obs.CountRevoked("reset")
	_ = audit.LogEvent(r.Context(), "auth.password_reset", nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "password updated",
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(principal.User))
}

func (a *API) handleSendPhoneOTP(w http.ResponseWriter, r *http.Request) {
	a.handleSendOTP(w, r, "auth.otp.phone_sent", a.auth.SendPhoneVerification)
}

func (a *API) handleSendEmailOTP(w http.ResponseWriter, r *http.Request) {
	a.handleSendOTP(w, r, "auth.otp.email_sent", a.auth.SendEmailVerification)
}

func (a *API) handleSendOTP(w http.ResponseWriter, r *http.Request, event string,
	send func(ctx context.Context, user *auth.User) (string, error)) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	challenge, err := send(r.Context(), principal.User)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.setOTPCookie(w, challenge)
	_ = audit.LogEvent(r.Context(), event, nil)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":    "sent",
		"challenge": challenge,
	})
}

func (a *API) handleVerifyPhoneOTP(w http.ResponseWriter, r *http.Request) {
	a.handleVerifyOTP(w, r, "auth.otp.phone_verified", a.auth.VerifyPhone)
}

func (a *API) handleVerifyEmailOTP(w http.ResponseWriter, r *http.Request) {
	a.handleVerifyOTP(w, r, "auth.otp.email_verified", a.auth.VerifyEmail)
}

func (a *API) handleVerifyOTP(w http.ResponseWriter, r *http.Request, event string,
	verify func(ctx context.Context, user *auth.User, challenge, code string) (*auth.User, error)) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	challenge := strings.TrimSpace(req.Challenge)
	if challenge == "" {
		if c, err := r.Cookie(otpCookie); err == nil {
			challenge = c.Value
		}
	}
	if challenge == "" {
		writeError(w, r, http.StatusBadRequest, "verification challenge is required")
		return
	}
	user, err := verify(r.Context(), principal.User, challenge, req.Code)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.clearOTPCookie(w)
	_ = audit.LogEvent(r.Context(), event, nil)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// --- grant plumbing ---

// writeGrant renders the issued credential and sets the matching cookies.
// Session grants live entirely in the cookie; token grants return the pair
// in the body and mirror the refresh token into a path-scoped cookie.
func (a *API) writeGrant(w http.ResponseWriter, r *http.Request, grant *auth.Grant) {
	if grant.IsSession() {
		obs.CountIssued("session")
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    grant.SessionID,
			Path:     "/",
			Expires:  grant.SessionExpiresAt,
			HttpOnly: true,
			Secure:   a.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
		expires := grant.SessionExpiresAt
		writeJSON(w, http.StatusOK, grantResponse{
			SessionExpiresAt: &expires,
		})
		return
	}

	obs.CountIssued("access")
	obs.CountIssued("refresh")
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    grant.RefreshToken,
		Path:     refreshCookiePath,
		Expires:  grant.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	accessExp := grant.AccessExpiresAt
	refreshExp := grant.RefreshExpiresAt
	writeJSON(w, http.StatusOK, grantResponse{
		TokenType:        "Bearer",
		AccessToken:      grant.AccessToken,
		AccessExpiresAt:  &accessExp,
		RefreshToken:     grant.RefreshToken,
		RefreshExpiresAt: &refreshExp,
	})
}

// refreshFromRequest prefers the JSON body, then a bearer Authorization
// header, then the refresh cookie.
func refreshFromRequest(w http.ResponseWriter, r *http.Request) string {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err == nil && strings.TrimSpace(req.RefreshToken) != "" {
		return strings.TrimSpace(req.RefreshToken)
	}
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		if token := strings.TrimSpace(header[len(bearer):]); token != "" {
			return token
		}
	}
	if c, err := r.Cookie(refreshCookie); err == nil {
		return c.Value
	}
	return ""
}

func (a *API) setOTPCookie(w http.ResponseWriter, challenge string) {
	http.SetCookie(w, &http.Cookie{
		Name:     otpCookie,
		Value:    challenge,
		Path:     "/v1/auth",
		MaxAge:   int(a.auth.OTPTTL().Seconds()),
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearOTPCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     otpCookie,
		Value:    "",
		Path:     "/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// isDenied distinguishes rejected logins from infrastructure failures
// for the login counter.
func isDenied(err error) bool {
	return errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrInactiveAccount)
}
