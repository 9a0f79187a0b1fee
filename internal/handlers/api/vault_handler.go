package api

import (
	"errors"

	"github.com/datavault/datavault/internal/fieldcipher"
	"github.com/datavault/datavault/internal/vault"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
)

type VaultHandler struct {
	vaultService VaultService
}

func NewVaultHandler(vaultService VaultService) *VaultHandler {
	return &VaultHandler{vaultService: vaultService}
}

type cardRequest struct {
	Label       string `json:"label"`
	CardHolder  string `json:"cardHolder"`
	Brand       string `json:"brand"`
	Number      string `json:"number"`
	ExpiryMonth int    `json:"expiryMonth"`
	ExpiryYear  int    `json:"expiryYear"`
	CVV         string `json:"cvv"`
}

type contactRequest struct {
	FullName string `json:"fullName"`
	Company  string `json:"company"`
	Title    string `json:"title"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Notes    string `json:"notes"`
}

func vaultErrorResponse(ctx *fiber.Ctx, err error) error {
	var decryptErr *fieldcipher.DecryptionError
	switch {
	case errors.Is(err, vault.ErrRecordNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(
			NewErrorResponse(fiber.StatusNotFound, "Record not found"),
		)
	case errors.Is(err, vault.ErrInvalidInput):
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid input"),
		)
	case errors.As(err, &decryptErr):
		// Surfaced as an explicit error, never as placeholder field values.
		return ctx.Status(fiber.StatusInternalServerError).JSON(
			NewErrorResponse(fiber.StatusInternalServerError, "Stored record could not be decrypted", APIErrorDetail{
				Domain:  "vault",
				Reason:  "decryptionFailed",
				Message: decryptErr.Reason,
			}),
		)
	default:
		return err
	}
}

func recordID(ctx *fiber.Ctx) (uint, error) {
	id := cast.ToUint(ctx.Params("id"))
	if id == 0 {
		return 0, fiber.ErrBadRequest
	}
	return id, nil
}

func (h *VaultHandler) GetCards(ctx *fiber.Ctx) error {
	views, err := h.vaultService.ListCards(ctx.Context(), currentActor(ctx))
	if err != nil {
		return vaultErrorResponse(ctx, err)
	}
	return ctx.JSON(NewDataResponse(views))
}

func (h *VaultHandler) GetCard(ctx *fiber.Ctx) error {
	id, err := recordID(ctx)
	if err != nil {
		return err
	}
	view, err := h.vaultService.GetCard(ctx.Context(), currentActor(ctx), id)
	if err != nil {
		return vaultErrorResponse(ctx, err)
	}
	return ctx.JSON(NewDataResponse(view))
}

func (h *VaultHandler) PostCard(ctx *fiber.Ctx) error {
	var req cardRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	view, err := h.vaultService.CreateCard(ctx.Context(), currentActor(ctx), vault.CardInput(req))
	if err != nil {
		return vaultErrorResponse(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(view))
}

func (h *VaultHandler) PutCard(ctx *fiber.Ctx) error {
	id, err := recordID(ctx)
	if err != nil {
		return err
	}
	var req cardRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := h.vaultService.UpdateCard(ctx.Context(), currentActor(ctx), id, vault.CardInput(req)); err != nil {
		return vaultErrorResponse(ctx, err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"updated": true}))
}

func (h *VaultHandler) DeleteCard(ctx *fiber.Ctx) error {
	id, err := recordID(ctx)
	if err != nil {
		return err
	}
	if err := h.vaultService.DeleteCard(ctx.Context(), currentActor(ctx), id); err != nil {
		return vaultErrorResponse(ctx, err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"deleted": true}))
}

func (h *VaultHandler) GetContacts(ctx *fiber.Ctx) error {
	views, err := h.vaultService.ListContacts(ctx.Context(), currentActor(ctx))
	if err != nil {
		return vaultErrorResponse(ctx, err)
	}
	return ctx.JSON(NewDataResponse(views))
}

func (h *VaultHandler) GetContact(ctx *fiber.Ctx) error {
	id, err := recordID(ctx)
	if err != nil {
		return err
	}
	view, err := h.vaultService.GetContact(ctx.Context(), currentActor(ctx), id)
	if err != nil {
		return vaultErrorResponse(ctx, err)
	}
	return ctx.JSON(NewDataResponse(view))
}

func (h *VaultHandler) PostContact(ctx *fiber.Ctx) error {
	var req contactRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	view, err := h.vaultService.CreateContact(ctx.Context(), currentActor(ctx), vault.ContactInput(req))
	if err != nil {
		return vaultErrorResponse(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(view))
}

func (h *VaultHandler) PutContact(ctx *fiber.Ctx) error {
	id, err := recordID(ctx)
	if err != nil {
		return err
	}
	var req contactRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := h.vaultService.UpdateContact(ctx.Context(), currentActor(ctx), id, vault.ContactInput(req)); err != nil {
		return vaultErrorResponse(ctx, err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"updated": true}))
}

func (h *VaultHandler) DeleteContact(ctx *fiber.Ctx) error {
	id, err := recordID(ctx)
	if err != nil {
		return err
	}
	if err := h.vaultService.DeleteContact(ctx.Context(), currentActor(ctx), id); err != nil {
		return vaultErrorResponse(ctx, err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"deleted": true}))
}
