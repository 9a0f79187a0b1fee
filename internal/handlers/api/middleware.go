package api

import (
	"strings"

	"github.com/datavault/datavault/internal/middlewares/sessions"
	"github.com/datavault/datavault/internal/passkeys"
	"github.com/datavault/datavault/internal/users"
	"github.com/datavault/datavault/internal/vault"
	"github.com/datavault/datavault/model"
	"github.com/gofiber/fiber/v2"
)

const currentUserKey = "currentUser"

// RequireAuth authenticates the request from the session cookie or, failing
// that, from a bearer access token. The resolved profile is stored in the
// request locals for the downstream handler.
func RequireAuth(userService UserService, tokens TokenIssuer) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		userID, ok := resolveIdentity(ctx, tokens)
		if !ok {
			return fiber.ErrUnauthorized
		}
		user, err := userService.GetUserByID(ctx.Context(), userID)
		if err != nil {
			if err == users.ErrUserNotFound {
				return fiber.ErrUnauthorized
			}
			return err
		}
		if user.Disabled {
			return fiber.ErrUnauthorized
		}
		ctx.Locals(currentUserKey, user)
		return ctx.Next()
	}
}

func resolveIdentity(ctx *fiber.Ctx, tokens TokenIssuer) (uint, bool) {
	if sess := sessions.Get(ctx); sess.IsAuthenticated() {
		return sess.UserID, true
	}
	header := ctx.Get(fiber.HeaderAuthorization)
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		if userID, _, err := tokens.Verify(token); err == nil {
			return userID, true
		}
	}
	return 0, false
}

func currentUser(ctx *fiber.Ctx) *model.User {
	return ctx.Locals(currentUserKey).(*model.User)
}

func currentActor(ctx *fiber.Ctx) vault.Actor {
	user := currentUser(ctx)
	return vault.Actor{
		UserID:    user.ID,
		Email:     user.Email,
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	}
}

// ceremonySubject fingerprints the client performing a ceremony. The session
// id is bound only when an established session exists: anonymous and
// bearer-token clients carry no cookie at begin, so a fresh session id would
// differ on every request and finish could never match. For them only
// attributes stable across the begin/finish pair are used.
func ceremonySubject(ctx *fiber.Ctx) passkeys.Subject {
	sub := passkeys.Subject{
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	}
	if sess := sessions.Get(ctx); sess.IsAuthenticated() {
		sub.SessionID = sess.ID()
	}
	return sub
}
