package api

import (
	"bytes"
	"errors"
	"log/slog"
	"time"

	"github.com/datavault/datavault/internal/passkeys"
	"github.com/datavault/datavault/internal/users"
	"github.com/datavault/datavault/model"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
)

type PasskeyHandler struct {
	passkeyService PasskeyService
	userService    UserService
	tokens         TokenIssuer
}

func NewPasskeyHandler(passkeyService PasskeyService, userService UserService, tokens TokenIssuer) *PasskeyHandler {
	return &PasskeyHandler{
		passkeyService: passkeyService,
		userService:    userService,
		tokens:         tokens,
	}
}

type ceremonyBeginResponse struct {
	State   string `json:"state"`
	Options any    `json:"options"`
}

type credentialResponse struct {
	ID          uint       `json:"id"`
	DeviceLabel string     `json:"deviceLabel"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	BackupState bool       `json:"backupState"`
}

func credentialInfoOf(record *model.Credential) credentialResponse {
	return credentialResponse{
		ID:          record.ID,
		DeviceLabel: record.DeviceLabel,
		CreatedAt:   record.CreatedAt,
		LastUsedAt:  record.LastUsedAt,
		BackupState: record.BackupState,
	}
}

func ceremonyErrorResponse(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, passkeys.ErrCeremonyExpired):
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(
			NewErrorResponse(fiber.StatusUnprocessableEntity, "Ceremony expired, start over"),
		)
	case errors.Is(err, passkeys.ErrSubjectMismatch), errors.Is(err, passkeys.ErrCeremonyFailed):
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(
			NewErrorResponse(fiber.StatusUnprocessableEntity, "Verification failed"),
		)
	case errors.Is(err, passkeys.ErrDuplicateCredential):
		return ctx.Status(fiber.StatusConflict).JSON(
			NewErrorResponse(fiber.StatusConflict, "This authenticator is already registered"),
		)
	case errors.Is(err, passkeys.ErrUnknownCredential),
		errors.Is(err, passkeys.ErrIntegrityViolation),
		errors.Is(err, passkeys.ErrCloneWarning):
		return ctx.Status(fiber.StatusUnauthorized).JSON(
			NewErrorResponse(fiber.StatusUnauthorized, "Authentication failed"),
		)
	case errors.Is(err, users.ErrUserDisabled):
		return ctx.Status(fiber.StatusForbidden).JSON(
			NewErrorResponse(fiber.StatusForbidden, "Account is disabled"),
		)
	default:
		return err
	}
}

func (h *PasskeyHandler) PostRegisterBegin(ctx *fiber.Ctx) error {
	user := currentUser(ctx)
	creation, stateID, err := h.passkeyService.BeginRegistration(ctx.Context(), user, ceremonySubject(ctx))
	if err != nil {
		return ceremonyErrorResponse(ctx, err)
	}
	return ctx.JSON(NewDataResponse(ceremonyBeginResponse{State: stateID, Options: creation}))
}

func (h *PasskeyHandler) PostRegisterFinish(ctx *fiber.Ctx) error {
	user := currentUser(ctx)
	stateID := ctx.Query("state")
	if stateID == "" {
		return fiber.ErrBadRequest
	}
	record, err := h.passkeyService.FinishRegistration(
		ctx.Context(), user, stateID, ctx.Query("label"),
		bytes.NewReader(ctx.Body()), ceremonySubject(ctx),
	)
	if err != nil {
		return ceremonyErrorResponse(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(credentialInfoOf(record)))
}

func (h *PasskeyHandler) PostLoginBegin(ctx *fiber.Ctx) error {
	assertion, stateID, err := h.passkeyService.BeginLogin(ctx.Context(), ceremonySubject(ctx))
	if err != nil {
		return ceremonyErrorResponse(ctx, err)
	}
	return ctx.JSON(NewDataResponse(ceremonyBeginResponse{State: stateID, Options: assertion}))
}

func (h *PasskeyHandler) PostLoginFinish(ctx *fiber.Ctx) error {
	stateID := ctx.Query("state")
	if stateID == "" {
		return fiber.ErrBadRequest
	}
	user, _, err := h.passkeyService.FinishLogin(
		ctx.Context(), stateID, bytes.NewReader(ctx.Body()), ceremonySubject(ctx),
	)
	if err != nil {
		return ceremonyErrorResponse(ctx, err)
	}

	if _, err := h.userService.ResolveSession(ctx.Context(), user.ID, model.AuthMethodBiometric); err != nil {
		slog.Warn("Failed to stamp last login", "user", user.ID, "error", err)
	}
	resp, err := establishSession(ctx, h.tokens, user, model.AuthMethodBiometric)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(resp))
}

func (h *PasskeyHandler) GetCredentials(ctx *fiber.Ctx) error {
	records, err := h.passkeyService.ListCredentials(ctx.Context(), currentUser(ctx).ID)
	if err != nil {
		return err
	}
	infos := make([]credentialResponse, 0, len(records))
	for _, record := range records {
		infos = append(infos, credentialInfoOf(record))
	}
	return ctx.JSON(NewDataResponse(infos))
}

func (h *PasskeyHandler) DeleteCredential(ctx *fiber.Ctx) error {
	credentialID := cast.ToUint(ctx.Params("id"))
	if credentialID == 0 {
		return fiber.ErrBadRequest
	}
	err := h.passkeyService.RemoveCredential(ctx.Context(), currentUser(ctx).ID, credentialID)
	if errors.Is(err, passkeys.ErrCredentialNotFound) {
		return ctx.Status(fiber.StatusNotFound).JSON(
			NewErrorResponse(fiber.StatusNotFound, "Passkey not found"),
		)
	}
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"deleted": 1}))
}

func (h *PasskeyHandler) DeleteAllCredentials(ctx *fiber.Ctx) error {
	deleted, err := h.passkeyService.RemoveAllCredentials(ctx.Context(), currentUser(ctx).ID)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"deleted": deleted}))
}
