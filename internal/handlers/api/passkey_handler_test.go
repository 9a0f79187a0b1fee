package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/datavault/datavault/internal/auth"
	"github.com/datavault/datavault/internal/middlewares/sessions"
	"github.com/datavault/datavault/internal/passkeys"
	"github.com/datavault/datavault/model"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
)

// spyPasskeyService records the subject handed to each ceremony call so
// tests can check that begin and finish see the same client fingerprint.
type spyPasskeyService struct {
	subjects []passkeys.Subject
}

func (s *spyPasskeyService) BeginRegistration(ctx context.Context, user *model.User, sub passkeys.Subject) (*protocol.CredentialCreation, string, error) {
	s.subjects = append(s.subjects, sub)
	return &protocol.CredentialCreation{}, "state-1", nil
}

func (s *spyPasskeyService) FinishRegistration(ctx context.Context, user *model.User, stateID string, deviceLabel string, body io.Reader, sub passkeys.Subject) (*model.Credential, error) {
	s.subjects = append(s.subjects, sub)
	return &model.Credential{ID: 1, UserID: user.ID, DeviceLabel: deviceLabel, CreatedAt: time.Now()}, nil
}

func (s *spyPasskeyService) BeginLogin(ctx context.Context, sub passkeys.Subject) (*protocol.CredentialAssertion, string, error) {
	s.subjects = append(s.subjects, sub)
	return &protocol.CredentialAssertion{}, "state-1", nil
}

func (s *spyPasskeyService) FinishLogin(ctx context.Context, stateID string, body io.Reader, sub passkeys.Subject) (*model.User, *model.Credential, error) {
	s.subjects = append(s.subjects, sub)
	return &model.User{ID: 1, Email: "alice@example.com"}, &model.Credential{ID: 1, UserID: 1}, nil
}

func (s *spyPasskeyService) ListCredentials(ctx context.Context, userID uint) ([]*model.Credential, error) {
	return nil, nil
}

func (s *spyPasskeyService) RemoveCredential(ctx context.Context, userID uint, credentialID uint) error {
	return nil
}

func (s *spyPasskeyService) RemoveAllCredentials(ctx context.Context, userID uint) (int64, error) {
	return 0, nil
}

func addCookies(req *http.Request, resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		req.AddCookie(cookie)
	}
}

// A first-time client has no session cookie: begin and finish each see a
// freshly generated session id, so the ceremony may only be bound to
// attributes stable across the pair.
func TestLoginCeremonySubjectStableWithoutCookies(t *testing.T) {
	spy := &spyPasskeyService{}
	user := &model.User{ID: 1, Email: "alice@example.com"}
	userService := &stubUserService{users: map[uint]*model.User{1: user}}
	tokens := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef")
	handler := NewPasskeyHandler(spy, userService, tokens)

	app := fiber.New()
	app.Use(sessions.New(sessions.Config{Storage: memory.New(), SessionMaxAge: time.Minute}))
	app.Post("/api/passkeys/login/begin", handler.PostLoginBegin)
	app.Post("/api/passkeys/login/finish", handler.PostLoginFinish)

	beginResp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/passkeys/login/begin", nil))
	if err != nil {
		t.Fatalf("begin request failed: %v", err)
	}
	if beginResp.StatusCode != fiber.StatusOK {
		t.Fatalf("begin status = %d, want 200", beginResp.StatusCode)
	}

	finishReq := httptest.NewRequest(fiber.MethodPost, "/api/passkeys/login/finish?state=state-1", nil)
	addCookies(finishReq, beginResp)
	finishResp, err := app.Test(finishReq)
	if err != nil {
		t.Fatalf("finish request failed: %v", err)
	}
	if finishResp.StatusCode != fiber.StatusOK {
		t.Fatalf("finish status = %d, want 200", finishResp.StatusCode)
	}

	if len(spy.subjects) != 2 {
		t.Fatalf("captured %d subjects, want 2", len(spy.subjects))
	}
	if spy.subjects[0] != spy.subjects[1] {
		t.Fatalf("subject changed between begin and finish: %+v vs %+v",
			spy.subjects[0], spy.subjects[1])
	}
	if spy.subjects[0].SessionID != "" {
		t.Fatalf("anonymous ceremony must not bind a session id, got %q", spy.subjects[0].SessionID)
	}
}

// A cookie-authenticated client has a persisted session, so the ceremony is
// additionally pinned to its stable session id.
func TestRegistrationCeremonySubjectBindsEstablishedSession(t *testing.T) {
	spy := &spyPasskeyService{}
	user := &model.User{ID: 1, Email: "alice@example.com"}
	userService := &stubUserService{users: map[uint]*model.User{1: user}}
	tokens := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef")
	handler := NewPasskeyHandler(spy, userService, tokens)

	app := fiber.New()
	app.Use(sessions.New(sessions.Config{Storage: memory.New(), SessionMaxAge: time.Minute}))
	app.Post("/session", func(ctx *fiber.Ctx) error {
		return sessions.Reset(ctx, sessions.SessionData{
			UserID:     1,
			AuthMethod: model.AuthMethodPassword,
			LoginTime:  time.Now(),
		})
	})
	authed := app.Group("", RequireAuth(userService, tokens))
	authed.Post("/api/passkeys/register/begin", handler.PostRegisterBegin)
	authed.Post("/api/passkeys/register/finish", handler.PostRegisterFinish)

	loginResp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/session", nil))
	if err != nil {
		t.Fatalf("session request failed: %v", err)
	}

	beginReq := httptest.NewRequest(fiber.MethodPost, "/api/passkeys/register/begin", nil)
	addCookies(beginReq, loginResp)
	beginResp, err := app.Test(beginReq)
	if err != nil {
		t.Fatalf("begin request failed: %v", err)
	}
	if beginResp.StatusCode != fiber.StatusOK {
		t.Fatalf("begin status = %d, want 200", beginResp.StatusCode)
	}

	finishReq := httptest.NewRequest(fiber.MethodPost, "/api/passkeys/register/finish?state=state-1&label=MacBook", nil)
	addCookies(finishReq, loginResp)
	finishResp, err := app.Test(finishReq)
	if err != nil {
		t.Fatalf("finish request failed: %v", err)
	}
	if finishResp.StatusCode != fiber.StatusCreated {
		t.Fatalf("finish status = %d, want 201", finishResp.StatusCode)
	}

	if len(spy.subjects) != 2 {
		t.Fatalf("captured %d subjects, want 2", len(spy.subjects))
	}
	if spy.subjects[0].SessionID == "" {
		t.Fatal("established session must pin the ceremony to its session id")
	}
	if spy.subjects[0] != spy.subjects[1] {
		t.Fatalf("subject changed between begin and finish: %+v vs %+v",
			spy.subjects[0], spy.subjects[1])
	}
}
