package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classattend/internal/apperr"
	"classattend/internal/catalog"
	"classattend/internal/model"
)

type subjectRequest struct {
	Name        string  `json:"name" binding:"required"`
	Code        string  `json:"code" binding:"required"`
	Description *string `json:"description"`
	TeacherID   *int64  `json:"teacherId"`
}

// input fills in the caller as teacher when a teacher omits it and refuses
// teachers assigning subjects to someone else.
func (r subjectRequest) input(cur model.User) (catalog.SubjectInput, error) {
	in := catalog.SubjectInput{
		Name:        r.Name,
		Code:        r.Code,
		Description: r.Description,
		TeacherID:   r.TeacherID,
	}
	if cur.Role == model.RoleTeacher {
		if in.TeacherID == nil {
			id := cur.ID
			in.TeacherID = &id
		} else if *in.TeacherID != cur.ID {
			return in, apperr.Forbiddenf("teachers can only assign subjects to themselves")
		}
	}
	return in, nil
}

func (h *Handler) listSubjects(c *gin.Context) {
	scope := catalog.SubjectScope{}
	if p := routePolicy(c); p.subjects != nil {
		scope = p.subjects(caller(c))
	}
	subs, err := h.catalog.ListSubjects(c.Request.Context(), scope)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

func (h *Handler) createSubject(c *gin.Context) {
	var req subjectRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	in, err := req.input(caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	sub, err := h.catalog.CreateSubject(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *Handler) getSubject(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	sub, err := h.catalog.GetSubject(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) updateSubject(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req subjectRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	in, err := req.input(caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	sub, err := h.catalog.UpdateSubject(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) deleteSubject(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.members.DeleteSubject(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type enrollRequest struct {
	StudentID int64 `json:"studentId" binding:"required,gt=0"`
}

type bulkEnrollRequest struct {
	StudentIDs []int64 `json:"studentIds" binding:"required,min=1,dive,gt=0"`
}

func (h *Handler) enroll(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req enrollRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	enr, err := h.members.EnrollOne(c.Request.Context(), id, req.StudentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, enr)
}

func (h *Handler) enrollBulk(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req bulkEnrollRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	n, err := h.members.EnrollBulk(c.Request.Context(), id, req.StudentIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *Handler) unenroll(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	studentID, err := pathID(c, "studentId")
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.members.Unenroll(c.Request.Context(), id, studentID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) subjectStudents(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	students, err := h.members.SubjectStudents(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

func (h *Handler) availableStudents(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	sectionID, err := queryID(c, "sectionId")
	if err != nil {
		writeError(c, err)
		return
	}
	students, err := h.members.ListAvailable(c.Request.Context(), id, sectionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

type qrRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *Handler) generateQr(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req qrRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	qr, err := h.codes.Generate(c.Request.Context(), id, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, qr)
}

func (h *Handler) activeQr(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	qr, err := h.codes.Active(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, qr)
}
