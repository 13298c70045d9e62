package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookexchange/internal/util"
	"bookexchange/pkg/auth"
	"bookexchange/pkg/domain"
	"bookexchange/pkg/events"
	"bookexchange/pkg/store"
)

const maxUsernameLen = 150

// SignUpInput is the registration form.
type SignUpInput struct {
	Username string
	Email    string
	Password string
	Confirm  string
	Mobile   string
	Place    string
}

// AccountUpdate carries settings changes. Empty fields are left unchanged.
type AccountUpdate struct {
	Username string
	Email    string
	Password string
	Confirm  string
}

func (a *App) checkUsername(username string) error {
	if username == "" {
		return invalid("username", "username is required")
	}
	if len(username) > maxUsernameLen {
		return invalid("username", "username is too long")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return invalid("username", "username must not contain spaces")
	}
	return nil
}

func (a *App) checkEmail(email string) error {
	if email == "" {
		return invalid("email", "email is required")
	}
	if err := a.validate.Var(email, "email"); err != nil {
		return invalid("email", "email is not valid")
	}
	return nil
}

func checkNewPassword(password, confirm string) error {
	if password != confirm {
		return invalid("password", "passwords do not match")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return invalid("password", err.Error())
	}
	return nil
}

// SignUp registers a user, creates the profile and issues a session. The
// first account becomes an admin.
func (a *App) SignUp(ctx context.Context, in SignUpInput) (domain.User, string, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	mobile := strings.TrimSpace(in.Mobile)
	if err := a.checkUsername(username); err != nil {
		return domain.User{}, "", err
	}
	if err := a.checkEmail(email); err != nil {
		return domain.User{}, "", err
	}
	if in.Password == "" {
		return domain.User{}, "", invalid("password", "password is required")
	}
	if err := checkNewPassword(in.Password, in.Confirm); err != nil {
		return domain.User{}, "", err
	}
	if mobile != "" {
		if err := checkMobile(mobile); err != nil {
			return domain.User{}, "", err
		}
	}

	if _, exists, err := a.store.GetUserByUsername(ctx, username); err != nil {
		return domain.User{}, "", fmt.Errorf("check username: %w", err)
	} else if exists {
		return domain.User{}, "", ErrUsernameTaken
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	count, err := a.store.UserCount(ctx)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("count users: %w", err)
	}
	role := domain.RoleUser
	if count == 0 {
		role = domain.RoleAdmin
	}
	now := a.now()
	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = a.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		profile, err := tx.EnsureProfile(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("ensure profile: %w", err)
		}
		if mobile == "" && strings.TrimSpace(in.Place) == "" {
			return nil
		}
		profile.Mobile = mobile
		profile.Place = strings.TrimSpace(in.Place)
		return tx.SaveProfile(ctx, profile)
	})
	if errors.Is(err, store.ErrConflict) {
		return domain.User{}, "", ErrUsernameTaken
	}
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create user: %w", err)
	}
	token, err := a.sessions.NewSession(ctx, user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	a.publish(ctx, events.New(events.UserRegistered, user.ID, user.ID, map[string]string{"username": user.Username}))
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(ctx context.Context, username, password string) (domain.User, string, error) {
	user, ok, err := a.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(ctx, user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(ctx, token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(ctx, uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// Logout removes a session token.
func (a *App) Logout(ctx context.Context, token string) error {
	return a.sessions.DeleteSession(ctx, token)
}

// EnsureProfile returns the user's profile, creating it if missing.
func (a *App) EnsureProfile(ctx context.Context, userID string) (domain.Profile, error) {
	profile, err := a.store.EnsureProfile(ctx, userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("ensure profile: %w", err)
	}
	return profile, nil
}

// UpdateAccount applies settings changes. A password change revokes every
// existing session and returns a fresh token; otherwise the token is "".
func (a *App) UpdateAccount(ctx context.Context, user domain.User, in AccountUpdate) (domain.User, string, error) {
	updated := user
	if username := strings.TrimSpace(in.Username); username != "" && username != user.Username {
		if err := a.checkUsername(username); err != nil {
			return domain.User{}, "", err
		}
		updated.Username = username
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		if err := a.checkEmail(email); err != nil {
			return domain.User{}, "", err
		}
		updated.Email = email
	}
	passwordChanged := in.Password != ""
	if passwordChanged {
		if err := checkNewPassword(in.Password, in.Confirm); err != nil {
			return domain.User{}, "", err
		}
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return domain.User{}, "", fmt.Errorf("hash password: %w", err)
		}
		updated.PasswordHash = hash
	}
	updated.UpdatedAt = a.now()
	if err := a.store.UpdateUser(ctx, updated); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return domain.User{}, "", ErrUsernameTaken
		case errors.Is(err, store.ErrNotFound):
			return domain.User{}, "", ErrNotFound
		}
		return domain.User{}, "", fmt.Errorf("update user: %w", err)
	}
	if !passwordChanged {
		return updated, "", nil
	}
	if revoker, ok := a.sessions.(store.UserSessionRevoker); ok {
		if err := revoker.RevokeUserSessions(ctx, user.ID, a.now()); err != nil {
			return domain.User{}, "", fmt.Errorf("revoke sessions: %w", err)
		}
	}
	token, err := a.sessions.NewSession(ctx, user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return updated, token, nil
}

// CreateSuperuser creates an admin account unless the username exists. It
// reports whether a user was created and always ensures the profile.
func (a *App) CreateSuperuser(ctx context.Context, username, email, password string) (domain.User, bool, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := a.checkUsername(username); err != nil {
		return domain.User{}, false, err
	}
	existing, ok, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("fetch user: %w", err)
	}
	if ok {
		if _, err := a.EnsureProfile(ctx, existing.ID); err != nil {
			return domain.User{}, false, err
		}
		return existing, false, nil
	}
	if err := a.checkEmail(email); err != nil {
		return domain.User{}, false, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, false, invalid("password", err.Error())
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = a.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		_, err := tx.EnsureProfile(ctx, user.ID)
		return err
	})
	if errors.Is(err, store.ErrConflict) {
		return domain.User{}, false, ErrUsernameTaken
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("create superuser: %w", err)
	}
	return user, true, nil
}

// DeleteUser removes the user and everything that depends on them, then
// drops their blobs and sessions best-effort.
func (a *App) DeleteUser(ctx context.Context, userID string) error {
	books, err := a.store.ListBooks(ctx, store.BookFilter{OwnerID: userID})
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	var keys []string
	for _, b := range books {
		keys = append(keys, b.CoverKey)
	}
	if profile, ok, err := a.store.GetProfile(ctx, userID); err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	} else if ok {
		keys = append(keys, profile.AvatarKey, profile.QRKey)
	}
	if err := a.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	a.deleteBlobs(ctx, keys...)
	if revoker, ok := a.sessions.(store.UserSessionRevoker); ok {
		if err := revoker.RevokeUserSessions(ctx, userID, a.now()); err != nil {
			a.logger.Warn("revoke sessions failed", "user_id", userID, "err", err)
		}
	}
	a.publish(ctx, events.New(events.UserDeleted, userID, userID, nil))
	return nil
}

// DeleteUserByUsername looks the user up and deletes them.
func (a *App) DeleteUserByUsername(ctx context.Context, username string) error {
	user, ok, err := a.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return a.DeleteUser(ctx, user.ID)
}
