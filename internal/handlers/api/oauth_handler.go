package api

import (
	"errors"
	"time"

	"github.com/datavault/datavault/internal/audit"
	"github.com/datavault/datavault/internal/common"
	"github.com/datavault/datavault/internal/middlewares/sessions"
	"github.com/datavault/datavault/internal/oauth"
	"github.com/datavault/datavault/internal/users"
	"github.com/datavault/datavault/model"
	"github.com/gofiber/fiber/v2"
)

const oauthStateKey = "oauthState"

func makeOAuthProvidersMap(oauthProviders []oauth.OAuthProvider) map[string]oauth.OAuthProvider {
	oauthProvidersMap := make(map[string]oauth.OAuthProvider)
	for _, provider := range oauthProviders {
		oauthProvidersMap[provider.Name()] = provider
	}
	return oauthProvidersMap
}

type OAuthHandler struct {
	userService    UserService
	oauthProviders map[string]oauth.OAuthProvider
}

func NewOAuthHandler(userService UserService, oauthProviders []oauth.OAuthProvider) *OAuthHandler {
	return &OAuthHandler{
		userService:    userService,
		oauthProviders: makeOAuthProvidersMap(oauthProviders),
	}
}

// GetOAuthRedirect sends the browser to the provider's consent page. The
// anti-forgery state is bound to the session and checked on callback.
func (h *OAuthHandler) GetOAuthRedirect(ctx *fiber.Ctx) error {
	provider, ok := h.oauthProviders[ctx.Params("provider")]
	if !ok {
		return fiber.ErrNotFound
	}
	state, err := common.GenerateSecret(16)
	if err != nil {
		return err
	}
	sess := sessions.Get(ctx)
	sess.Set(oauthStateKey, state)
	return ctx.Redirect(provider.GetAuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

func (h *OAuthHandler) GetOAuthCallback(ctx *fiber.Ctx) error {
	providerName := ctx.Params("provider")
	provider, ok := h.oauthProviders[providerName]
	if !ok {
		return fiber.ErrNotFound
	}

	sess := sessions.Get(ctx)
	wantState, _ := sess.Get(oauthStateKey).(string)
	sess.Delete(oauthStateKey)
	if wantState == "" || ctx.Query("state") != wantState {
		return fiber.ErrBadRequest
	}

	oauthToken, err := provider.ExchangeToken(ctx.Context(), ctx.Query("code"))
	if err != nil {
		return fiber.ErrBadRequest
	}
	oauthUserInfo, err := provider.GetUserInfo(ctx.Context(), oauthToken)
	if err != nil {
		return err
	}

	user, err := h.userService.GetOrCreateOAuthUser(ctx.Context(), providerName, users.OAuthUserInfo{
		Email:   oauthUserInfo.Email,
		Name:    oauthUserInfo.Name,
		Picture: oauthUserInfo.Picture,
	})
	if err != nil {
		audit.LogLogin(ctx.Context(), audit.Record{
			Email:     oauthUserInfo.Email,
			Method:    model.AuditMethodOf(providerName),
			Success:   false,
			IP:        ctx.IP(),
			UserAgent: ctx.Get(fiber.HeaderUserAgent),
			Details:   "oauth sign-in failed",
		})
		if errors.Is(err, users.ErrUserDisabled) {
			return fiber.ErrForbidden
		}
		return err
	}

	if err := sess.Reset(sessions.SessionData{
		IP:         ctx.IP(),
		UserID:     user.ID,
		AuthMethod: providerName,
		LoginTime:  time.Now(),
	}); err != nil {
		return err
	}

	audit.LogLogin(ctx.Context(), audit.Record{
		UserID:    user.ID,
		Email:     user.Email,
		Method:    model.AuditMethodOf(providerName),
		Success:   true,
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	})
	return ctx.Redirect("/", fiber.StatusFound)
}
