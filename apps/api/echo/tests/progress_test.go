package tests

import (
	"context"
	"net/http"
	"testing"

	. "github.com/trezcool/tuutta/apps/api/echo"
	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/enrollment"
	"github.com/trezcool/tuutta/core/progress"
	"github.com/trezcool/tuutta/tests"
)

func Test_progressApi(t *testing.T) {
	app, svcs := newServer(t)
	ctx := context.Background()

	course := testutil.Course{
		ID:      "c1",
		Modules: []string{"m1", "m2"},
		Lessons: map[string][]string{"m1": {"l1", "l2"}, "m2": {"l3"}},
	}
	lessonIDs := []string{"l1", "l2", "l3"}
	enr := testutil.Enroll(t, svcs.Enrollments, "org", "u1", course.ID)

	complete := func(moduleID, lessonID string) []byte {
		return marshallObj(t, course.Completion("u1", moduleID, lessonID))
	}
	next := marshallObj(t, NextLessonRequest{LessonIDs: lessonIDs})

	tests := []httpTest{
		{
			name: "start", method: http.MethodPost, path: "/v1/progress/lessons/start",
			body: []byte(`{"user_id":"u1","course_id":"c1","lesson_id":"l2"}`), wantCode: http.StatusNoContent,
		},
		{
			name: "start (not enrolled)", method: http.MethodPost, path: "/v1/progress/lessons/start",
			body:     []byte(`{"user_id":"u2","course_id":"c1","lesson_id":"l1"}`),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "progress not found"}),
		},
		{
			name: "next lesson resumes the bookmark", method: http.MethodPost, path: "/v1/progress/u1/c1/next-lesson",
			body: next, wantCode: http.StatusOK, wantData: marshallObj(t, NextLessonResponse{LessonID: "l2"}),
		},
		{
			name: "complete l1", method: http.MethodPost, path: "/v1/progress/lessons/complete", body: complete("m1", "l1"),
			wantCode: http.StatusOK, wantData: marshallObj(t, progress.CompletionStats{PercentComplete: 33}),
		},
		{
			name: "complete l1 (duplicate)", method: http.MethodPost, path: "/v1/progress/lessons/complete", body: complete("m1", "l1"),
			wantCode: http.StatusOK, wantData: marshallObj(t, progress.CompletionStats{PercentComplete: 33}),
		},
		{
			name: "complete l2", method: http.MethodPost, path: "/v1/progress/lessons/complete", body: complete("m1", "l2"),
			wantCode: http.StatusOK, wantData: marshallObj(t, progress.CompletionStats{PercentComplete: 67, ModuleCompleted: true}),
		},
		{
			name: "next lesson", method: http.MethodPost, path: "/v1/progress/u1/c1/next-lesson",
			body: next, wantCode: http.StatusOK, wantData: marshallObj(t, NextLessonResponse{LessonID: "l3"}),
		},
		{
			name: "complete l3", method: http.MethodPost, path: "/v1/progress/lessons/complete", body: complete("m2", "l3"),
			wantCode: http.StatusOK,
			wantData: marshallObj(t, progress.CompletionStats{PercentComplete: 100, ModuleCompleted: true, CourseCompleted: true}),
		},
		{
			name: "next lesson (done)", method: http.MethodPost, path: "/v1/progress/u1/c1/next-lesson",
			body: next, wantCode: http.StatusOK, wantData: marshallObj(t, NextLessonResponse{Done: true}),
		},
		{
			name: "complete (invalid)", method: http.MethodPost, path: "/v1/progress/lessons/complete",
			body: []byte(`{"user_id":"u1","course_id":"c1","lesson_id":"l1","module_id":"m1"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "time spent", method: http.MethodPost, path: "/v1/progress/time",
			body: []byte(`{"user_id":"u1","course_id":"c1","seconds":20}`), wantCode: http.StatusOK,
		},
		{
			name: "time spent (negative)", method: http.MethodPost, path: "/v1/progress/time",
			body:     []byte(`{"user_id":"u1","course_id":"c1","seconds":-1}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"seconds": "seconds must not be negative"}),
		},
		{
			name: "retrieve (unknown)", path: "/v1/progress/u2/c1",
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "progress not found"}),
		},
		{name: "events (none)", path: "/v1/progress/u2/c1/events", wantCode: http.StatusOK, wantData: marshallList(t)},
	}
	runHTTPTests(t, app, tests)

	rec := do(app, http.MethodGet, "/v1/progress/u1/c1")
	if rec.Code != http.StatusOK {
		t.Fatalf("retrieve: code = %d; body %s", rec.Code, rec.Body.String())
	}
	var s progress.Summary
	unmarshall(t, rec, &s)
	if s.PercentComplete != 100 || s.TotalTimeSpentSeconds != 3*60+20 || len(s.CompletedModuleIDs) != 2 {
		t.Errorf("retrieve: got %+v", s)
	}

	rec = do(app, http.MethodGet, "/v1/progress/u1/c1/events")
	var evs []progress.Event
	unmarshall(t, rec, &evs)
	// 1 start, 3 lessons, 2 modules, 1 course
	if len(evs) != 7 {
		t.Errorf("events: got %d; want 7", len(evs))
	}

	got, err := svcs.Enrollments.Get(ctx, enr.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != enrollment.StatusCompleted || got.CertificateID == "" {
		t.Fatalf("enrollment after course completion: got %+v", got)
	}

	cert, err := svcs.Certificates.Get(ctx, got.CertificateID)
	if err != nil {
		t.Fatalf("Certificates.Get() error = %v", err)
	}
	runHTTPTests(t, app, []httpTest{
		{name: "certificate", path: "/v1/certificates/" + cert.ID, wantCode: http.StatusOK, wantData: marshallObj(t, cert)},
		{
			name: "certificate (unknown)", path: "/v1/certificates/lol",
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "certificate not found"}),
		},
	})

	if n := len(svcs.Sink.Events(core.ActionCourseCompleted)); n != 1 {
		t.Errorf("course.completed events = %d; want 1", n)
	}
}
