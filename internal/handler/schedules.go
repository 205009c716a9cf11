package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"classattend/internal/apperr"
	"classattend/internal/catalog"
)

func (h *Handler) teacherSchedules(c *gin.Context) {
	rows, err := h.catalog.SchedulesByTeacher(c.Request.Context(), caller(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) subjectSchedules(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	rows, err := h.catalog.SchedulesBySubject(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type scheduleRequest struct {
	SubjectID int64  `json:"subjectId" binding:"required,gt=0"`
	DayOfWeek string `json:"dayOfWeek" binding:"required"`
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime" binding:"required"`
	Room      string `json:"room" binding:"required"`
}

func (h *Handler) createSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	if err := h.teaches(c, caller(c), req.SubjectID); err != nil {
		writeError(c, err)
		return
	}
	s, err := h.catalog.CreateSchedule(c.Request.Context(), catalog.ScheduleInput{
		SubjectID: req.SubjectID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Room:      req.Room,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) deleteSchedule(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	ctx := c.Request.Context()
	sh, err := h.catalog.GetSchedule(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		// already gone
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.teaches(c, caller(c), sh.SubjectID); err != nil {
		writeError(c, err)
		return
	}
	if err := h.catalog.DeleteSchedule(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
