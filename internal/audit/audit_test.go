package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/datavault/datavault/model"
)

type captureRepo struct {
	events []*model.AuditEvent
	err    error
}

func (r *captureRepo) RecordEvent(ctx context.Context, event *model.AuditEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *captureRepo) FindEvents(ctx context.Context, filter Filter) ([]*model.AuditEvent, error) {
	var out []*model.AuditEvent
	for _, event := range r.events {
		if filter.UserID != 0 && event.UserID != filter.UserID {
			continue
		}
		if filter.Action != "" && event.Action != filter.Action {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

var testRepo = &captureRepo{}

func init() {
	Initialize(testRepo)
}

func TestLogHelpersSetAction(t *testing.T) {
	ctx := context.Background()
	testRepo.events = nil

	LogLogin(ctx, Record{UserID: 1, Email: "a@example.com", Method: model.AuditMethodEmail, Success: true})
	LogLogout(ctx, Record{UserID: 1, Success: true})
	LogBiometricAuth(ctx, Record{UserID: 1, Success: false, Details: "verification failed"})

	if len(testRepo.events) != 3 {
		t.Fatalf("recorded %d events, want 3", len(testRepo.events))
	}
	wantActions := []string{model.AuditActionLogin, model.AuditActionLogout, model.AuditActionBiometricAuth}
	for i, want := range wantActions {
		if testRepo.events[i].Action != want {
			t.Fatalf("event %d action = %q, want %q", i, testRepo.events[i].Action, want)
		}
	}
	if testRepo.events[2].Method != model.AuditMethodBiometric {
		t.Fatalf("biometric helper must force the method, got %q", testRepo.events[2].Method)
	}
	if testRepo.events[2].Success {
		t.Fatal("failure outcome must be recorded as Success=false")
	}
}

func TestLogSwallowsRepositoryErrors(t *testing.T) {
	testRepo.events = nil
	testRepo.err = errors.New("db down")
	defer func() { testRepo.err = nil }()

	// must not panic or bubble the error
	Log(context.Background(), Record{UserID: 1, Action: model.AuditActionDataAccess})
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	testRepo.events = nil

	LogLogin(ctx, Record{UserID: 1, Success: true})
	LogLogin(ctx, Record{UserID: 2, Success: true})
	LogLogout(ctx, Record{UserID: 1, Success: true})

	events, err := Query(ctx, Filter{UserID: 1, Action: model.AuditActionLogin})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].UserID != 1 || events[0].Action != model.AuditActionLogin {
		t.Fatalf("wrong event returned: %+v", events[0])
	}
}
