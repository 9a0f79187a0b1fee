package api

import (
	"time"

	"github.com/datavault/datavault/internal/audit"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
)

type SecurityLogsHandler struct{}

func NewSecurityLogsHandler() *SecurityLogsHandler {
	return &SecurityLogsHandler{}
}

type securityLogResponse struct {
	ID        uint64    `json:"id"`
	Action    string    `json:"action"`
	Method    string    `json:"method,omitempty"`
	Success   bool      `json:"success"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// GetSecurityLogs lists the caller's own audit trail, newest first.
func (h *SecurityLogsHandler) GetSecurityLogs(ctx *fiber.Ctx) error {
	filter := audit.Filter{
		UserID: currentUser(ctx).ID,
		Action: ctx.Query("action"),
		Limit:  cast.ToInt(ctx.Query("limit")),
		Offset: cast.ToInt(ctx.Query("offset")),
	}
	if raw := ctx.Query("success"); raw != "" {
		success := cast.ToBool(raw)
		filter.Success = &success
	}
	if raw := ctx.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.ErrBadRequest
		}
		filter.Since = since
	}
	if raw := ctx.Query("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.ErrBadRequest
		}
		filter.Until = until
	}

	events, err := audit.Query(ctx.Context(), filter)
	if err != nil {
		return err
	}
	logs := make([]securityLogResponse, 0, len(events))
	for _, event := range events {
		logs = append(logs, securityLogResponse{
			ID:        event.ID,
			Action:    event.Action,
			Method:    event.Method,
			Success:   event.Success,
			IP:        event.IP,
			UserAgent: event.UserAgent,
			Details:   event.Details,
			CreatedAt: event.CreatedAt,
		})
	}
	return ctx.JSON(NewDataResponse(logs))
}
