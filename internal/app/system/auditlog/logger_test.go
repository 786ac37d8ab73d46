package auditlog

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/stayhome/internal/app/store/audit"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memSink struct {
	events []audit.Event
	err    error
}

func (m *memSink) Log(_ context.Context, e audit.Event) error {
	m.events = append(m.events, e)
	return m.err
}

func TestLogger_Modes(t *testing.T) {
	tests := []struct {
		mode       string
		wantStored bool
		wantLogged bool
	}{
		{ModeAll, true, true},
		{ModeDB, true, false},
		{ModeLog, false, true},
		{ModeOff, false, false},
		{"", true, true},
	}
	for _, tt := range tests {
		t.Run("mode="+tt.mode, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			sink := &memSink{}
			l := New(sink, zap.New(core), Config{Auth: tt.mode, Admin: ModeOff})

			r := httptest.NewRequest("POST", "/api/auth/student/login", nil)
			l.LoginSuccess(r, models.KindStudent, primitive.NewObjectID(), "s@example.com")

			if got := len(sink.events) == 1; got != tt.wantStored {
				t.Errorf("stored = %v, want %v", got, tt.wantStored)
			}
			if got := logs.Len() == 1; got != tt.wantLogged {
				t.Errorf("logged = %v, want %v", got, tt.wantLogged)
			}
		})
	}
}

func TestLogger_EventFields(t *testing.T) {
	sink := &memSink{}
	l := New(sink, zap.NewNop(), Config{Auth: ModeDB, Admin: ModeDB})

	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "203.0.113.9:5555"
	r.Header.Set("User-Agent", "test-agent")

	l.LoginFailed(r, models.KindOwner, primitive.NilObjectID, "o@example.com", audit.EventLoginFailedNotFound, "email not found")
	actor, target := primitive.NewObjectID(), primitive.NewObjectID()
	l.Admin(r, actor, target, audit.EventOwnerApproved, nil)

	if len(sink.events) != 2 {
		t.Fatalf("events = %d, want 2", len(sink.events))
	}
	failed := sink.events[0]
	if failed.Success || failed.FailureReason != "email not found" || failed.UserID != nil {
		t.Errorf("failed login event = %+v", failed)
	}
	if failed.IP != "203.0.113.9" || failed.UserAgent != "test-agent" || failed.Kind != "owner" {
		t.Errorf("request fields = ip %q ua %q kind %q", failed.IP, failed.UserAgent, failed.Kind)
	}
	admin := sink.events[1]
	if admin.Category != audit.CategoryAdmin || *admin.ActorID != actor || *admin.UserID != target || !admin.Success {
		t.Errorf("admin event = %+v", admin)
	}
}

func TestLogger_StoreErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	l := New(&memSink{err: errors.New("down")}, zap.New(core), Config{Auth: ModeDB})
	l.Auth(httptest.NewRequest("GET", "/", nil), models.KindStudent, primitive.NewObjectID(), audit.EventLogout, "", nil)
	if logs.FilterMessage("failed to store audit event").Len() != 1 {
		t.Error("store failure was not logged")
	}
}

func TestLogger_Nil(t *testing.T) {
	var l *Logger
	l.LoginSuccess(httptest.NewRequest("GET", "/", nil), models.KindStudent, primitive.NewObjectID(), "x")
}

func TestValidMode(t *testing.T) {
	for _, m := range []string{"all", "db", "log", "off"} {
		if !ValidMode(m) {
			t.Errorf("ValidMode(%q) = false", m)
		}
	}
	if ValidMode("loud") {
		t.Error("ValidMode(loud) = true")
	}
}
