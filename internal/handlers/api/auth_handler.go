package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/datavault/datavault/internal/audit"
	"github.com/datavault/datavault/internal/middlewares/sessions"
	"github.com/datavault/datavault/internal/users"
	"github.com/datavault/datavault/model"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	userService UserService
	tokens      TokenIssuer
}

func NewAuthHandler(userService UserService, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		tokens:      tokens,
	}
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authSuccessResponse struct {
	User        UserInfoResponse `json:"user"`
	AccessToken string           `json:"accessToken"`
}

func userInfoOf(user *model.User) UserInfoResponse {
	return UserInfoResponse{
		UserID:           user.ID,
		Email:            user.Email,
		DisplayName:      user.DisplayName,
		Picture:          user.Picture,
		BiometricEnabled: user.SecuritySettings.BiometricEnabled,
	}
}

// establishSession rotates the session and issues an access token after any
// successful sign-in.
func establishSession(ctx *fiber.Ctx, tokens TokenIssuer, user *model.User, method string) (*authSuccessResponse, error) {
	if err := sessions.Reset(ctx, sessions.SessionData{
		IP:         ctx.IP(),
		UserID:     user.ID,
		AuthMethod: method,
		LoginTime:  time.Now(),
	}); err != nil {
		return nil, err
	}
	accessToken, err := tokens.Issue(user, method)
	if err != nil {
		return nil, err
	}
	info := userInfoOf(user)
	return &authSuccessResponse{User: info, AccessToken: accessToken}, nil
}

func (h *AuthHandler) PostRegister(ctx *fiber.Ctx) error {
	var req registerRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if req.Email == "" || req.Password == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Email and password are required"),
		)
	}

	user, err := h.userService.CreateUser(ctx.Context(), users.CreateUserOptions{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		AuthMethod:  model.AuthMethodPassword,
	})
	if errors.Is(err, users.ErrEmailRegistered) {
		return ctx.Status(fiber.StatusConflict).JSON(
			NewErrorResponse(fiber.StatusConflict, "Email already registered"),
		)
	}
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid registration request"),
		)
	}

	resp, err := establishSession(ctx, h.tokens, user, model.AuthMethodPassword)
	if err != nil {
		return err
	}
	audit.LogLogin(ctx.Context(), audit.Record{
		UserID:    user.ID,
		Email:     user.Email,
		Method:    model.AuditMethodEmail,
		Success:   true,
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
		Details:   "account created",
	})
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(resp))
}

func (h *AuthHandler) PostLogin(ctx *fiber.Ctx) error {
	var req loginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	user, err := h.userService.Authenticate(ctx.Context(), req.Email, req.Password)
	if err != nil {
		audit.LogLogin(ctx.Context(), audit.Record{
			Email:     req.Email,
			Method:    model.AuditMethodEmail,
			Success:   false,
			IP:        ctx.IP(),
			UserAgent: ctx.Get(fiber.HeaderUserAgent),
			Details:   "password sign-in failed",
		})
		switch {
		case errors.Is(err, users.ErrWrongCredentials), errors.Is(err, users.ErrPasswordNotSet):
			return ctx.Status(fiber.StatusUnauthorized).JSON(
				NewErrorResponse(fiber.StatusUnauthorized, "Invalid email or password"),
			)
		case errors.Is(err, users.ErrUserDisabled):
			return ctx.Status(fiber.StatusForbidden).JSON(
				NewErrorResponse(fiber.StatusForbidden, "Account is disabled"),
			)
		default:
			return err
		}
	}

	if _, err := h.userService.ResolveSession(ctx.Context(), user.ID, model.AuthMethodPassword); err != nil {
		slog.Warn("Failed to stamp last login", "user", user.ID, "error", err)
	}
	resp, err := establishSession(ctx, h.tokens, user, model.AuthMethodPassword)
	if err != nil {
		return err
	}
	audit.LogLogin(ctx.Context(), audit.Record{
		UserID:    user.ID,
		Email:     user.Email,
		Method:    model.AuditMethodEmail,
		Success:   true,
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	})
	return ctx.JSON(NewDataResponse(resp))
}

func (h *AuthHandler) PostLogout(ctx *fiber.Ctx) error {
	sess := sessions.Get(ctx)
	if sess.IsAuthenticated() {
		audit.LogLogout(ctx.Context(), audit.Record{
			UserID:    sess.UserID,
			Method:    model.AuditMethodOf(sess.AuthMethod),
			Success:   true,
			IP:        ctx.IP(),
			UserAgent: ctx.Get(fiber.HeaderUserAgent),
		})
	}
	if err := sess.Destroy(); err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"loggedOut": true}))
}
