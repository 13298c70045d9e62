package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookexchange/pkg/domain"
	"bookexchange/pkg/events"
	"bookexchange/pkg/storage"
	"bookexchange/pkg/store"
)

func TestSignUpCreatesProfileAndSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first, token, err := env.app.SignUp(ctx, SignUpInput{
		Username: "  alice ",
		Email:    "alice@example.com",
		Password: "password1",
		Confirm:  "password1",
		Mobile:   "9876543210",
		Place:    "Pune",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", first.Username)
	assert.Equal(t, domain.RoleAdmin, first.Role, "first user becomes admin")
	assert.NotEmpty(t, token)

	profile, ok, err := env.store.GetProfile(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, ok, "signup must create the profile")
	assert.Equal(t, "9876543210", profile.Mobile)
	assert.Equal(t, "Pune", profile.Place)

	resolved, ok := env.app.UserFromToken(ctx, token)
	require.True(t, ok)
	assert.Equal(t, first.ID, resolved.ID)

	second, _ := env.signUp(t, "bob")
	assert.Equal(t, domain.RoleUser, second.Role)
	_, ok, err = env.store.GetProfile(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Contains(t, env.events.types(), events.UserRegistered)
}

func TestSignUpValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signUp(t, "alice")

	tests := []struct {
		name string
		in   SignUpInput
		want error
	}{
		{name: "missing username", in: SignUpInput{Email: "a@example.com", Password: "password1", Confirm: "password1"}, want: ErrValidation},
		{name: "bad email", in: SignUpInput{Username: "x", Email: "nope", Password: "password1", Confirm: "password1"}, want: ErrValidation},
		{name: "mismatch", in: SignUpInput{Username: "x", Email: "x@example.com", Password: "password1", Confirm: "password2"}, want: ErrValidation},
		{name: "short password", in: SignUpInput{Username: "x", Email: "x@example.com", Password: "pw1", Confirm: "pw1"}, want: ErrValidation},
		{name: "bad mobile", in: SignUpInput{Username: "x", Email: "x@example.com", Password: "password1", Confirm: "password1", Mobile: "12"}, want: ErrValidation},
		{name: "taken", in: SignUpInput{Username: "alice", Email: "x@example.com", Password: "password1", Confirm: "password1"}, want: ErrUsernameTaken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := env.app.SignUp(ctx, tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}

	count, err := env.store.UserCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestLoginAndLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")

	_, _, err := env.app.Login(ctx, "alice", "wrong-password1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = env.app.Login(ctx, "nobody", "password1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	user, token, err := env.app.Login(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	require.NoError(t, env.app.Logout(ctx, token))
	_, ok := env.app.UserFromToken(ctx, token)
	assert.False(t, ok)
}

func TestUpdateAccountPasswordRevokesSessions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, oldToken := env.signUp(t, "alice")

	updated, newToken, err := env.app.UpdateAccount(ctx, alice, AccountUpdate{
		Email:    "new@example.com",
		Password: "newpassword2",
		Confirm:  "newpassword2",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	require.NotEmpty(t, newToken)

	_, ok := env.app.UserFromToken(ctx, oldToken)
	assert.False(t, ok, "old session must be revoked")
	_, ok = env.app.UserFromToken(ctx, newToken)
	assert.True(t, ok)

	_, _, err = env.app.Login(ctx, "alice", "password1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = env.app.Login(ctx, "alice", "newpassword2")
	require.NoError(t, err)
}

func TestUpdateAccountPasswordRevokesJWTSessions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := store.NewGormStore(filepath.Join(dir, "jwt.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	sessions, err := store.NewJWTSessionStore(strings.Repeat("s", 32), time.Hour, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	require.NoError(t, err)
	blobs, err := storage.NewFileStore(filepath.Join(dir, "media"), "/media")
	require.NoError(t, err)
	a, err := New(Config{Store: st, Sessions: sessions, Blobs: blobs})
	require.NoError(t, err)

	alice, oldToken, err := a.SignUp(ctx, SignUpInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
		Confirm:  "password1",
	})
	require.NoError(t, err)
	_, ok := a.UserFromToken(ctx, oldToken)
	require.True(t, ok)

	_, newToken, err := a.UpdateAccount(ctx, alice, AccountUpdate{Password: "newpassword2", Confirm: "newpassword2"})
	require.NoError(t, err)

	_, ok = a.UserFromToken(ctx, oldToken)
	assert.False(t, ok, "token from the same second as the change must be revoked")
	user, ok := a.UserFromToken(ctx, newToken)
	assert.True(t, ok, "token issued by the change must stay valid")
	assert.Equal(t, alice.ID, user.ID)
}

func TestUpdateAccountUsername(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")
	env.signUp(t, "bob")

	_, _, err := env.app.UpdateAccount(ctx, alice, AccountUpdate{Username: "bob"})
	require.ErrorIs(t, err, ErrUsernameTaken)

	updated, token, err := env.app.UpdateAccount(ctx, alice, AccountUpdate{Username: "alicia"})
	require.NoError(t, err)
	assert.Empty(t, token, "no new session without a password change")
	assert.Equal(t, "alicia", updated.Username)

	_, ok, err := env.store.GetUserByUsername(ctx, "alicia")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateSuperuserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	user, created, err := env.app.CreateSuperuser(ctx, "admin", "admin@example.com", "admin123")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RoleAdmin, user.Role)

	again, created, err := env.app.CreateSuperuser(ctx, "admin", "admin@example.com", "admin123")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)

	_, ok, err := env.store.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateProfileAndImages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")

	_, err := env.app.UpdateProfile(ctx, alice, ProfileInput{Mobile: "12ab"})
	require.ErrorIs(t, err, ErrValidation)

	profile, err := env.app.UpdateProfile(ctx, alice, ProfileInput{Place: "Goa", Mobile: "9876543210", UPIID: "alice@upi"})
	require.NoError(t, err)
	assert.Equal(t, "Goa", profile.Place)

	first, err := env.app.SetAvatar(ctx, alice, *pngUpload("me.png", "one"))
	require.NoError(t, err)
	second, err := env.app.SetAvatar(ctx, alice, *pngUpload("me2.png", "two"))
	require.NoError(t, err)
	assert.NotEqual(t, first.AvatarKey, second.AvatarKey)
	assert.Equal(t, "alice@upi", second.UPIID, "image updates keep other fields")

	_, err = env.app.SetAvatar(ctx, alice, *pngUpload("me.bmp", "x"))
	require.ErrorIs(t, err, ErrValidation)
	big := make([]byte, 2048)
	_, err = env.app.SetPaymentQR(ctx, alice, *pngUpload("qr.png", string(big)))
	require.ErrorIs(t, err, ErrValidation)

	url := env.app.BlobURL(ctx, second.AvatarKey)
	assert.Equal(t, "/media/"+second.AvatarKey, url)
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice, token := env.signUp(t, "alice")
	bob, _ := env.signUp(t, "bob")
	book := env.addBook(t, alice, "Dune", "100", "both")
	bobBook := env.addBook(t, bob, "Emma", "10", "swap")

	_, err := env.app.RequestSwap(ctx, bob, SwapInput{RequestedBookID: book.ID, Mobile: "9876543210"})
	require.NoError(t, err)
	_, err = env.app.RequestSwap(ctx, alice, SwapInput{RequestedBookID: bobBook.ID, Mobile: "9876543210"})
	require.NoError(t, err)
	_, err = env.app.AddReview(ctx, alice, bobBook.ID, 4, "nice")
	require.NoError(t, err)

	require.NoError(t, env.app.DeleteUserByUsername(ctx, "alice"))

	_, ok, err := env.store.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = env.store.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	swaps, err := env.store.ListSwaps(ctx, store.SwapFilter{})
	require.NoError(t, err)
	assert.Empty(t, swaps)
	reviews, err := env.app.ListReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, reviews)
	_, ok = env.app.UserFromToken(ctx, token)
	assert.False(t, ok)

	require.ErrorIs(t, env.app.DeleteUserByUsername(ctx, "alice"), ErrNotFound)
}
