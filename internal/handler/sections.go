package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classattend/internal/catalog"
)

type sectionRequest struct {
	Name        string  `json:"name" binding:"required"`
	Code        string  `json:"code" binding:"required"`
	Description *string `json:"description"`
}

func (r sectionRequest) input() catalog.SectionInput {
	return catalog.SectionInput{Name: r.Name, Code: r.Code, Description: r.Description}
}

func (h *Handler) listSections(c *gin.Context) {
	rows, err := h.catalog.ListSections(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) createSection(c *gin.Context) {
	var req sectionRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	sec, err := h.catalog.CreateSection(c.Request.Context(), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sec)
}

func (h *Handler) updateSection(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req sectionRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	sec, err := h.catalog.UpdateSection(c.Request.Context(), id, req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sec)
}

func (h *Handler) deleteSection(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.members.DeleteSection(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) sectionStudents(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	rows, err := h.members.SectionStudents(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) enrollInSection(c *gin.Context) {
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
	enr, err := h.members.EnrollInSection(c.Request.Context(), id, req.StudentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, enr)
}

func (h *Handler) unenrollFromSection(c *gin.Context) {
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
	if err := h.members.UnenrollFromSection(c.Request.Context(), id, studentID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
