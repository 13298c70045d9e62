package app

import (
	"context"
	"fmt"
	"strings"

	"bookexchange/pkg/domain"
)

const (
	minMobileLen = 10
	maxMobileLen = 15
	maxPlaceLen  = 100
	maxUPIIDLen  = 50
)

// checkMobile enforces the contact number rule: ASCII digits only, 10 to 15 long.
func checkMobile(mobile string) error {
	if mobile == "" {
		return invalid("mobile", "mobile number is required")
	}
	if len(mobile) < minMobileLen || len(mobile) > maxMobileLen {
		return invalid("mobile", "please enter a valid mobile number")
	}
	for i := 0; i < len(mobile); i++ {
		if mobile[i] < '0' || mobile[i] > '9' {
			return invalid("mobile", "please enter a valid mobile number")
		}
	}
	return nil
}

// ProfileInput is the editable part of a profile.
type ProfileInput struct {
	Place  string
	Mobile string
	UPIID  string
}

// Profile returns the user's profile.
func (a *App) Profile(ctx context.Context, user domain.User) (domain.Profile, error) {
	return a.EnsureProfile(ctx, user.ID)
}

// UpdateProfile replaces place, mobile and UPI id. Mobile may be blank.
func (a *App) UpdateProfile(ctx context.Context, user domain.User, in ProfileInput) (domain.Profile, error) {
	mobile := strings.TrimSpace(in.Mobile)
	if mobile != "" {
		if err := checkMobile(mobile); err != nil {
			return domain.Profile{}, err
		}
	}
	place := strings.TrimSpace(in.Place)
	if len(place) > maxPlaceLen {
		return domain.Profile{}, invalid("place", "place is too long")
	}
	upi := strings.TrimSpace(in.UPIID)
	if len(upi) > maxUPIIDLen {
		return domain.Profile{}, invalid("upiId", "UPI id is too long")
	}
	profile, err := a.EnsureProfile(ctx, user.ID)
	if err != nil {
		return domain.Profile{}, err
	}
	profile.Place = place
	profile.Mobile = mobile
	profile.UPIID = upi
	profile.UpdatedAt = a.now()
	if err := a.store.SaveProfile(ctx, profile); err != nil {
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// SetAvatar stores a new avatar image, replacing the old one.
func (a *App) SetAvatar(ctx context.Context, user domain.User, up Upload) (domain.Profile, error) {
	return a.replaceProfileImage(ctx, user, kindAvatar, "avatar", up, func(p *domain.Profile) *string { return &p.AvatarKey })
}

// SetPaymentQR stores a new payment QR image, replacing the old one.
func (a *App) SetPaymentQR(ctx context.Context, user domain.User, up Upload) (domain.Profile, error) {
	return a.replaceProfileImage(ctx, user, kindQR, "qr", up, func(p *domain.Profile) *string { return &p.QRKey })
}

func (a *App) replaceProfileImage(ctx context.Context, user domain.User, kind, field string, up Upload, slot func(*domain.Profile) *string) (domain.Profile, error) {
	profile, err := a.EnsureProfile(ctx, user.ID)
	if err != nil {
		return domain.Profile{}, err
	}
	key, err := a.saveUpload(ctx, kind, field, &up)
	if err != nil {
		return domain.Profile{}, err
	}
	target := slot(&profile)
	old := *target
	*target = key
	profile.UpdatedAt = a.now()
	if err := a.store.SaveProfile(ctx, profile); err != nil {
		a.deleteBlobs(ctx, key)
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	a.deleteBlobs(ctx, old)
	return profile, nil
}
