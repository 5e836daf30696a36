package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuutta/core/progress"
)

type ProgressService interface {
	RecordLessonStart(ctx context.Context, ref progress.LessonRef) error
	RecordLessonComplete(ctx context.Context, lc progress.LessonCompletion) (progress.CompletionStats, error)
	AddTimeSpent(ctx context.Context, userID, courseID string, seconds int64) (progress.Summary, error)
	GetProgress(ctx context.Context, userID, courseID string) (progress.Summary, error)
	GetNextLesson(ctx context.Context, userID, courseID string, orderedLessonIDs []string) (string, bool, error)
	Events(ctx context.Context, userID, courseID string) ([]progress.Event, error)
}

type (
	TimeSpentRequest struct {
		UserID   string `json:"user_id"`
		CourseID string `json:"course_id"`
		Seconds  int64  `json:"seconds"`
	}

	NextLessonRequest struct {
		LessonIDs []string `json:"lesson_ids"`
	}

	NextLessonResponse struct {
		LessonID string `json:"lesson_id,omitempty"`
		Done     bool   `json:"done"`
	}
)

type progressApi struct {
	svc ProgressService
}

func registerProgressAPI(g *echo.Group, svc ProgressService) {
	api := progressApi{svc: svc}

	pg := g.Group("/progress")
	pg.POST("/lessons/start", api.startLesson)
	pg.POST("/lessons/complete", api.completeLesson)
	pg.POST("/time", api.addTimeSpent)
	pg.GET("/:userId/:courseId", api.retrieve)
	pg.GET("/:userId/:courseId/events", api.events)
	pg.POST("/:userId/:courseId/next-lesson", api.nextLesson)
}

func (api *progressApi) startLesson(ctx echo.Context) error {
	var data progress.LessonRef
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonRef")
	}
	if err := api.svc.RecordLessonStart(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "starting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *progressApi) completeLesson(ctx echo.Context) error {
	var data progress.LessonCompletion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonCompletion")
	}
	stats, err := api.svc.RecordLessonComplete(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *progressApi) addTimeSpent(ctx echo.Context) error {
	var data TimeSpentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TimeSpentRequest")
	}
	s, err := api.svc.AddTimeSpent(ctx.Request().Context(), data.UserID, data.CourseID, data.Seconds)
	if err != nil {
		return errors.Wrap(err, "adding time spent")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *progressApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.GetProgress(ctx.Request().Context(), ctx.Param("userId"), ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *progressApi) events(ctx echo.Context) error {
	evs, err := api.svc.Events(ctx.Request().Context(), ctx.Param("userId"), ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "getting progress events")
	}
	if evs == nil {
		evs = []progress.Event{}
	}
	return ctx.JSON(http.StatusOK, evs)
}

func (api *progressApi) nextLesson(ctx echo.Context) error {
	var data NextLessonRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NextLessonRequest")
	}
	id, ok, err := api.svc.GetNextLesson(ctx.Request().Context(), ctx.Param("userId"), ctx.Param("courseId"), data.LessonIDs)
	if err != nil {
		return errors.Wrap(err, "getting next lesson")
	}
	return ctx.JSON(http.StatusOK, NextLessonResponse{LessonID: id, Done: !ok})
}
