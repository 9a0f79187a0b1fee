package api

import (
	"errors"
	"time"

	"github.com/datavault/datavault/internal/users"
	"github.com/datavault/datavault/model"
	"github.com/datavault/datavault/params"
	"github.com/gofiber/fiber/v2"
)

type ProfileHandler struct {
	userService UserService
}

func NewProfileHandler(userService UserService) *ProfileHandler {
	return &ProfileHandler{userService: userService}
}

type securitySettingsResponse struct {
	TwoFactorEnabled      bool `json:"twoFactorEnabled"`
	BiometricEnabled      bool `json:"biometricEnabled"`
	SessionTimeoutMinutes int  `json:"sessionTimeoutMinutes"`
	AutoLogout            bool `json:"autoLogout"`
	EncryptionEnabled     bool `json:"encryptionEnabled"`
}

type authMethodResponse struct {
	Type       string     `json:"type"`
	Enabled    bool       `json:"enabled"`
	SetupAt    time.Time  `json:"setupAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

type profileResponse struct {
	User        UserInfoResponse         `json:"user"`
	Settings    securitySettingsResponse `json:"settings"`
	AuthMethods []authMethodResponse     `json:"authMethods"`
	LastLoginAt *time.Time               `json:"lastLoginAt,omitempty"`
}

type updateSettingsRequest struct {
	TwoFactorEnabled      *bool `json:"twoFactorEnabled"`
	SessionTimeoutMinutes *int  `json:"sessionTimeoutMinutes"`
	AutoLogout            *bool `json:"autoLogout"`
	EncryptionEnabled     *bool `json:"encryptionEnabled"`
}

func settingsOf(settings model.SecuritySettings) securitySettingsResponse {
	return securitySettingsResponse{
		TwoFactorEnabled:      settings.TwoFactorEnabled,
		BiometricEnabled:      settings.BiometricEnabled,
		SessionTimeoutMinutes: settings.SessionTimeoutMinutes,
		AutoLogout:            settings.AutoLogout,
		EncryptionEnabled:     settings.EncryptionEnabled,
	}
}

// GetProfile is a pure read: the login stamp belongs to the sign-in paths,
// never to a profile fetch.
func (h *ProfileHandler) GetProfile(ctx *fiber.Ctx) error {
	user := currentUser(ctx)
	methods, err := h.userService.GetAuthMethods(ctx.Context(), user.ID)
	if err != nil {
		return err
	}
	methodInfos := make([]authMethodResponse, 0, len(methods))
	for _, method := range methods {
		methodInfos = append(methodInfos, authMethodResponse{
			Type:       method.Type,
			Enabled:    method.Enabled,
			SetupAt:    method.SetupAt,
			LastUsedAt: method.LastUsedAt,
		})
	}

	return ctx.JSON(NewDataResponse(profileResponse{
		User:        userInfoOf(user),
		Settings:    settingsOf(user.SecuritySettings),
		AuthMethods: methodInfos,
		LastLoginAt: user.LastLoginAt,
	}))
}

// PutSettings updates the mutable security preferences. The biometric flag
// is excluded: it follows the credential table and only passkey enrollment
// or removal may change it.
func (h *ProfileHandler) PutSettings(ctx *fiber.Ctx) error {
	var req updateSettingsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	user := currentUser(ctx)
	settings := user.SecuritySettings
	if req.TwoFactorEnabled != nil {
		settings.TwoFactorEnabled = *req.TwoFactorEnabled
	}
	if req.SessionTimeoutMinutes != nil {
		settings.SessionTimeoutMinutes = *req.SessionTimeoutMinutes
	}
	if req.AutoLogout != nil {
		settings.AutoLogout = *req.AutoLogout
	}
	if req.EncryptionEnabled != nil {
		settings.EncryptionEnabled = *req.EncryptionEnabled
	}
	if settings.SessionTimeoutMinutes <= 0 {
		settings.SessionTimeoutMinutes = params.DefaultSessionTimeout
	}

	if err := h.userService.UpdateSecuritySettings(ctx.Context(), user.ID, settings); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return fiber.ErrUnauthorized
		}
		return err
	}
	return ctx.JSON(NewDataResponse(settingsOf(settings)))
}
