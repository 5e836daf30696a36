package activitysvc_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tuutta/core"
	activitysvc "github.com/trezcool/tuutta/services/activity"
	emailsvc "github.com/trezcool/tuutta/services/email"
	dummydb "github.com/trezcool/tuutta/storage/database/dummy"
	testutil "github.com/trezcool/tuutta/tests"
)

type collector struct {
	mu  sync.Mutex
	evs []core.ActivityEvent
}

func (c *collector) Handle(_ context.Context, ev core.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evs = append(c.evs, ev)
	return nil
}

func (c *collector) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var actions []string
	for _, ev := range c.evs {
		actions = append(actions, ev.Action)
	}
	return actions
}

func closeSink(t *testing.T, sink *activitysvc.AsyncSink) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sink.Close(ctx))
}

func TestAsyncSink(t *testing.T) {
	logger := &testutil.Logger{}
	c := &collector{}
	panicky := activitysvc.HandlerFunc(func(context.Context, core.ActivityEvent) error { panic("boom") })

	sink := activitysvc.NewAsyncSink(10, logger, panicky, c)
	ctx := context.Background()
	sink.Log(ctx, core.ActivityEvent{Action: "a"})
	sink.Log(ctx, core.ActivityEvent{Action: "b"})
	closeSink(t, sink)

	// a failing handler does not stop the others
	assert.Equal(t, []string{"a", "b"}, c.actions())
	assert.Len(t, logger.Errors, 2)

	// closing twice is fine, and later events are dropped
	closeSink(t, sink)
	sink.Log(ctx, core.ActivityEvent{Action: "c"})
	assert.Equal(t, []string{"a", "b"}, c.actions())
	assert.Len(t, logger.Warnings, 1)
}

func TestAsyncSink_full(t *testing.T) {
	logger := &testutil.Logger{}
	c := &collector{}
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	blocking := activitysvc.HandlerFunc(func(context.Context, core.ActivityEvent) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})

	sink := activitysvc.NewAsyncSink(1, logger, blocking, c)
	ctx := context.Background()

	sink.Log(ctx, core.ActivityEvent{Action: "a"})
	<-started
	sink.Log(ctx, core.ActivityEvent{Action: "b"}) // buffered
	sink.Log(ctx, core.ActivityEvent{Action: "c"}) // dropped

	close(release)
	closeSink(t, sink)

	assert.Equal(t, []string{"a", "b"}, c.actions())
	require.Len(t, logger.Warnings, 1)
	assert.True(t, strings.Contains(logger.Warnings[0], "dropping"))
}

func TestRecorderAndMailer(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewActivityRepository(db)
	logger := &testutil.Logger{}
	mailSvc := emailsvc.NewConsoleServiceMock(&core.Config{AppName: "Tuutta"}, logger)

	sink := activitysvc.NewAsyncSink(10, logger,
		activitysvc.NewRecorder(repo),
		activitysvc.NewMailer(mailSvc, "audit@tuutta.test"),
	)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sink.Log(ctx, core.ActivityEvent{OrgID: "org", ActorID: "u1", Action: core.ActionEnrollmentCreated, EntityType: "enrollment", EntityID: "e1", OccurredAt: now})
	sink.Log(ctx, core.ActivityEvent{OrgID: "org", ActorID: "u1", Action: core.ActionCourseCompleted, EntityType: "enrollment", EntityID: "e1", OccurredAt: now.Add(time.Minute),
		Metadata: map[string]interface{}{"courseId": "c1"}})
	closeSink(t, sink)

	evs, err := repo.QueryActivities(ctx, core.ActivityFilter{OrgID: "org"})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, core.ActionCourseCompleted, evs[0].Action)

	sent := mailSvc.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "audit@tuutta.test", sent[0].To[0].Address)
	assert.Equal(t, "New enrollment", sent[0].Subject)
	assert.Equal(t, []string{"activity", core.ActionEnrollmentCreated}, sent[0].Categories)
	assert.Contains(t, sent[0].TextContent, "Actor: u1")
	assert.Equal(t, "audit@tuutta.test", sent[1].To[0].Address)
	assert.Equal(t, "Course completed", sent[1].Subject)
	assert.Equal(t, []string{"activity", core.ActionCourseCompleted}, sent[1].Categories)
	assert.Contains(t, sent[1].TextContent, "courseId: c1")
	assert.Contains(t, sent[1].TextContent, "enrollment: e1")
}

func TestMailer_Handle(t *testing.T) {
	tests := []struct {
		action  string
		subject string
	}{
		{action: core.ActionEnrollmentCreated, subject: "New enrollment"},
		{action: core.ActionCourseCompleted, subject: "Course completed"},
		{action: core.ActionCertificateIssued, subject: "Certificate issued"},
		{action: core.ActionEnrollmentExpired, subject: "Enrollment expired"},
		{action: core.ActionAssessmentSubmitted},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			mailSvc := emailsvc.NewConsoleServiceMock(&core.Config{}, &testutil.Logger{})
			m := activitysvc.NewMailer(mailSvc, "audit@tuutta.test")

			require.NoError(t, m.Handle(context.Background(), core.ActivityEvent{Action: tt.action, EntityType: "enrollment", EntityID: "e1"}))
			sent := mailSvc.SentMessages()
			if tt.subject == "" {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.Equal(t, tt.subject, sent[0].Subject)
		})
	}
}

func TestMailer_noAuditEmail(t *testing.T) {
	mailSvc := emailsvc.NewConsoleServiceMock(&core.Config{}, &testutil.Logger{})
	m := activitysvc.NewMailer(mailSvc, "")

	require.NoError(t, m.Handle(context.Background(), core.ActivityEvent{Action: core.ActionCourseCompleted}))
	assert.Empty(t, mailSvc.SentMessages())
}
