package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"bookexchange/internal/app"
)

func (s *Server) handleSignup(c echo.Context) error {
	if !s.allowRate(c, s.signupLimiter) {
		s.audit(c, "signup", "rate_limited")
		return app.ErrRateLimited
	}
	var req signupRequest
	if err := s.bind(c, &req); err != nil {
		s.audit(c, "signup", "fail", "reason", "invalid_request")
		return err
	}
	user, token, err := s.app.SignUp(c.Request().Context(), app.SignUpInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Confirm:  req.Confirm,
		Mobile:   req.Mobile,
		Place:    req.Place,
	})
	if err != nil {
		s.audit(c, "signup", "fail", "reason", err.Error())
		return err
	}
	s.audit(c, "signup", "success", "user_id", user.ID)
	s.setSessionCookie(c, token)
	return c.JSON(http.StatusCreated, authResponse{User: user, Token: token})
}

func (s *Server) handleLogin(c echo.Context) error {
	if !s.allowRate(c, s.loginLimiter) {
		s.audit(c, "login", "rate_limited")
		return app.ErrRateLimited
	}
	var req loginRequest
	if err := s.bind(c, &req); err != nil {
		s.audit(c, "login", "fail", "reason", "invalid_request")
		return err
	}
	user, token, err := s.app.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		reason := "internal"
		if errors.Is(err, app.ErrInvalidCredentials) {
			reason = "invalid_credentials"
		}
		s.audit(c, "login", "fail", "reason", reason)
		return err
	}
	s.audit(c, "login", "success", "user_id", user.ID)
	s.setSessionCookie(c, token)
	return c.JSON(http.StatusOK, authResponse{User: user, Token: token})
}

func (s *Server) handleLogout(c echo.Context) error {
	user := currentUser(c)
	if err := s.app.Logout(c.Request().Context(), currentToken(c)); err != nil {
		s.audit(c, "logout", "fail", "user_id", user.ID, "reason", err.Error())
		return err
	}
	s.audit(c, "logout", "success", "user_id", user.ID)
	s.clearSessionCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"status": "logged out"})
}

func (s *Server) handleMe(c echo.Context) error {
	ctx := c.Request().Context()
	user := currentUser(c)
	profile, err := s.app.Profile(ctx, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResponse{User: user, Profile: s.profileDTO(ctx, profile)})
}

func (s *Server) handleUpdateMe(c echo.Context) error {
	var req accountUpdateRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	user := currentUser(c)
	updated, token, err := s.app.UpdateAccount(c.Request().Context(), user, app.AccountUpdate{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Confirm:  req.Confirm,
	})
	if err != nil {
		return err
	}
	if token == "" {
		return c.JSON(http.StatusOK, echo.Map{"user": updated})
	}
	s.audit(c, "password.change", "success", "user_id", user.ID)
	s.setSessionCookie(c, token)
	return c.JSON(http.StatusOK, authResponse{User: updated, Token: token})
}

func (s *Server) handleProfile(c echo.Context) error {
	ctx := c.Request().Context()
	profile, err := s.app.Profile(ctx, currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.profileDTO(ctx, profile))
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	var req profileRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	profile, err := s.app.UpdateProfile(ctx, currentUser(c), app.ProfileInput{
		Place:  req.Place,
		Mobile: req.Mobile,
		UPIID:  req.UPIID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.profileDTO(ctx, profile))
}

func (s *Server) handleAvatar(c echo.Context) error {
	up, closeFn, err := requireUpload(c, "avatar")
	defer closeFn()
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	profile, err := s.app.SetAvatar(ctx, currentUser(c), *up)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.profileDTO(ctx, profile))
}

func (s *Server) handlePaymentQR(c echo.Context) error {
	up, closeFn, err := requireUpload(c, "qr")
	defer closeFn()
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	profile, err := s.app.SetPaymentQR(ctx, currentUser(c), *up)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.profileDTO(ctx, profile))
}
