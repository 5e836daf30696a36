package tests

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/trezcool/tuutta/core/enrollment"
	"github.com/trezcool/tuutta/tests"
)

func Test_enrollmentApi_enroll(t *testing.T) {
	app, svcs := newServer(t)

	rec := do(app, http.MethodPost, "/v1/enrollments", []byte(`{"org_id":"org","user_id":"u1","course_id":"c1"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("enroll: code = %d; body %s", rec.Code, rec.Body.String())
	}
	var enr enrollment.Enrollment
	unmarshall(t, rec, &enr)
	if enr.ID != enrollment.ID("org", "u1", "c1") || enr.Status != enrollment.StatusActive || enr.EnrolledBy != "u1" {
		t.Errorf("enroll: got %+v", enr)
	}

	tests := []httpTest{
		{
			name: "idempotent", method: http.MethodPost, path: "/v1/enrollments",
			body:     []byte(`{"org_id":"org","user_id":"u1","course_id":"c1","enrolled_by":"admin"}`),
			wantCode: http.StatusOK, wantData: marshallObj(t, enr),
		},
		{
			name: "org_id required", method: http.MethodPost, path: "/v1/enrollments",
			body:     []byte(`{"user_id":"u1","course_id":"c1"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"org_id": "org_id must not be blank nor contain '_'"}),
		},
		{
			name: "separator in user_id", method: http.MethodPost, path: "/v1/enrollments",
			body:     []byte(`{"org_id":"org","user_id":"u_1","course_id":"c1"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"user_id": "user_id must not be blank nor contain '_'"}),
		},
		{
			name: "progress tracked by another org", method: http.MethodPost, path: "/v1/enrollments",
			body:     []byte(`{"org_id":"org2","user_id":"u1","course_id":"c1"}`),
			wantCode: http.StatusConflict,
			wantData: marshallObj(t, policyErr{Error: enrollment.ErrProgressExists.Message, Rule: enrollment.ErrProgressExists.Rule}),
		},
		{name: "malformed body", method: http.MethodPost, path: "/v1/enrollments", body: []byte(`{"org_id":`), wantCode: http.StatusBadRequest},
		{
			name: "retrieve", path: "/v1/enrollments/" + enr.ID,
			wantCode: http.StatusOK, wantData: marshallObj(t, enr),
		},
		{
			name: "retrieve (unknown)", path: "/v1/enrollments/lol",
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "enrollment not found"}),
		},
	}
	runHTTPTests(t, app, tests)

	if n := len(svcs.Sink.Events("enrollment.created")); n != 1 {
		t.Errorf("enrollment.created events = %d; want 1", n)
	}
}

func Test_enrollmentApi_query(t *testing.T) {
	app, svcs := newServer(t)
	ctx := context.Background()

	path := func(orgID, courseID, ordering string, statuses ...string) string {
		v := make(url.Values)
		if orgID != "" {
			v.Add("org_id", orgID)
		}
		if courseID != "" {
			v.Add("course_id", courseID)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		for _, s := range statuses {
			v.Add("status", s)
		}
		return "/v1/enrollments?" + v.Encode()
	}

	e1 := testutil.Enroll(t, svcs.Enrollments, "org", "u1", "c1")
	e2 := testutil.Enroll(t, svcs.Enrollments, "org", "u2", "c1")
	e3 := testutil.Enroll(t, svcs.Enrollments, "org", "u1", "c2")
	e4 := testutil.Enroll(t, svcs.Enrollments, "other", "u3", "c1")

	rec := do(app, http.MethodPost, "/v1/enrollments/"+e3.ID+"/withdraw", []byte(`{"reason":"  moved  "}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("withdraw: code = %d; body %s", rec.Code, rec.Body.String())
	}
	e3, _ = svcs.Enrollments.Get(ctx, e3.ID)
	if e3.Status != enrollment.StatusWithdrawn || e3.WithdrawReason != "moved" {
		t.Fatalf("withdraw: got %+v", e3)
	}

	tests := []httpTest{
		{name: "Get all", path: path("", "", "id"), wantCode: http.StatusOK, wantData: marshallList(t, e1, e3, e2, e4)},
		{name: "org_id", path: path("org", "", "-id"), wantCode: http.StatusOK, wantData: marshallList(t, e2, e3, e1)},
		{name: "org_id & course_id", path: path("org", "c1", "id"), wantCode: http.StatusOK, wantData: marshallList(t, e1, e2)},
		{name: "status=withdrawn", path: path("", "", "", "withdrawn"), wantCode: http.StatusOK, wantData: marshallList(t, e3)},
		{name: "status (none)", path: path("", "", "", "expired"), wantCode: http.StatusOK, wantData: marshallList(t)},
		{
			name: "status (invalid)", path: path("", "", "", "lol"),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"status": "invalid status"}),
		},
		{name: "due_before (invalid)", path: "/v1/enrollments?due_before=lol", wantCode: http.StatusBadRequest},
	}
	runHTTPTests(t, app, tests)
}

func Test_enrollmentApi_updateStatus(t *testing.T) {
	app, svcs := newServer(t)
	ctx := context.Background()

	due := time.Now().Add(24 * time.Hour)
	enr := testutil.Enroll(t, svcs.Enrollments, "org", "u1", "c1", due)
	statusPath := "/v1/enrollments/" + enr.ID + "/status"

	tests := []httpTest{
		{name: "status required", method: http.MethodPatch, path: statusPath, body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "status (invalid)", method: http.MethodPatch, path: statusPath, body: []byte(`{"status":"lol"}`), wantCode: http.StatusBadRequest},
		{
			name: "unknown enrollment", method: http.MethodPatch, path: "/v1/enrollments/lol/status",
			body: []byte(`{"status":"expired"}`), wantCode: http.StatusNotFound,
		},
		{name: "expired", method: http.MethodPatch, path: statusPath, body: []byte(`{"status":"expired"}`), wantCode: http.StatusOK},
		{name: "completed", method: http.MethodPatch, path: statusPath, body: []byte(`{"status":"completed"}`), wantCode: http.StatusOK},
		{
			name: "withdraw (reason too long)", method: http.MethodPost, path: "/v1/enrollments/" + enr.ID + "/withdraw",
			body: marshallObj(t, enrollment.Withdrawal{Reason: strings.Repeat("a", 1001)}), wantCode: http.StatusBadRequest,
		},
	}
	runHTTPTests(t, app, tests)

	got, err := svcs.Enrollments.Get(ctx, enr.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != enrollment.StatusCompleted || got.CompletedAt == nil {
		t.Errorf("after updates: got %+v", got)
	}
	if n := len(svcs.Sink.Events("enrollment.status_changed", "enrollment.completed")); n != 2 {
		t.Errorf("status events = %d; want 2", n)
	}
}
