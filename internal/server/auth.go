package server

import (
	"net/http"

	"admissions/internal/auth"
	"admissions/pkg/types"
)

type registerBody struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// handlePostRegister creates an applicant account. Staff accounts are seeded
// or created by a principal.
func (s *Service) handlePostRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.accounts.Register(r.Context(), auth.RegisterInput{
		Email:     body.Email,
		Password:  body.Password,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Phone:     body.Phone,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "User registered",
		"user":    user,
	})
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) handlePostLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.accounts.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	encrypted, err := s.cookie.Encode(s.config.CookieName, session.AccessToken)
	if err != nil {
		s.logger.WithError(err).Error("failed to encrypt access token")
		s.writeMessage(w, http.StatusInternalServerError, "Login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    encrypted,
		HttpOnly: true,
		Secure:   s.config.Environment != "development",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.accounts.Tokens().TTL().Seconds()),
		Path:     "/",
	})

	s.logger.WithField("user_id", session.User.ID).Info("user logged in")

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"token":      session.AccessToken,
		"expires_at": session.ExpiresAt,
		"user":       session.User,
	})
}

func (s *Service) handlePostLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   s.config.Environment != "development",
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type forgotPasswordBody struct {
	Email string `json:"email"`
}

func (s *Service) handlePostForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body forgotPasswordBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.accounts.ForgotPassword(r.Context(), body.Email); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "If the email is registered, a password reset link has been sent",
	})
}

type resetPasswordBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Service) handlePostResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Token == "" || body.Password == "" {
		s.writeMessage(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	if err := s.accounts.ResetPassword(r.Context(), body.Token, body.Password); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password reset successfully",
	})
}

type createUserBody struct {
	registerBody
	Role string `json:"role"`
}

// handlePostCreateUser creates a staff account on behalf of a principal.
func (s *Service) handlePostCreateUser(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	var body createUserBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.accounts.CreateStaffUser(r.Context(), identity.UserID, auth.RegisterInput{
		Email:     body.Email,
		Password:  body.Password,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Phone:     body.Phone,
		Role:      types.Role(body.Role),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.WithField("user_id", user.ID).WithField("role", user.Role).Info("staff user created")

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "User created",
		"user":    user,
	})
}
