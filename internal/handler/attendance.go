package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classattend/internal/attendance"
	"classattend/internal/model"
)

func (h *Handler) listAttendance(c *gin.Context) {
	var f model.AttendanceFilter
	var err error
	if f.StudentID, err = queryID(c, "studentId"); err != nil {
		writeError(c, err)
		return
	}
	if f.SubjectID, err = queryID(c, "subjectId"); err != nil {
		writeError(c, err)
		return
	}
	if d := c.Query("date"); d != "" {
		f.Date = &d
	}
	if p := routePolicy(c); p.attendance != nil {
		f = p.attendance(caller(c), f)
	}
	rows, err := h.ledger.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type markRequest struct {
	StudentID int64                  `json:"studentId"`
	SubjectID int64                  `json:"subjectId" binding:"required,gt=0"`
	Date      string                 `json:"date"`
	Status    model.AttendanceStatus `json:"status" binding:"required,oneof=present late absent excused"`
	Remarks   *string                `json:"remarks"`
}

// markAttendance records one row. Students always mark for themselves and
// teachers only in subjects they teach.
func (h *Handler) markAttendance(c *gin.Context) {
	var req markRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	cur := caller(c)
	if err := h.teaches(c, cur, req.SubjectID); err != nil {
		writeError(c, err)
		return
	}
	f := model.AttendanceFilter{StudentID: &req.StudentID}
	if p := routePolicy(c); p.attendance != nil {
		f = p.attendance(cur, f)
	}
	rec, err := h.ledger.Mark(c.Request.Context(), attendance.MarkInput{
		StudentID: *f.StudentID,
		SubjectID: req.SubjectID,
		Date:      req.Date,
		Status:    req.Status,
		Remarks:   req.Remarks,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

type checkInRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *Handler) checkIn(c *gin.Context) {
	var req checkInRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	rec, err := h.ledger.CheckIn(c.Request.Context(), caller(c), req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) attendanceSummary(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.catalog.GetSubject(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	sum, err := h.ledger.Summary(c.Request.Context(), id, c.Query("date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
