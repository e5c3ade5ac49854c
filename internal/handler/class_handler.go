package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/middleware"
	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/response"
	"github.com/stemsi/classbook-backend/internal/schedule"
	"github.com/stemsi/classbook-backend/internal/service"
	"github.com/stemsi/classbook-backend/internal/validator"
)

// ClassHandler handles the owner's class registry (CRUD).
type ClassHandler struct {
	classService *service.ClassService
	log          zerolog.Logger
}

// NewClassHandler creates a new ClassHandler.
func NewClassHandler(classService *service.ClassService, log zerolog.Logger) *ClassHandler {
	return &ClassHandler{
		classService: classService,
		log:          log.With().Str("component", "class_handler").Logger(),
	}
}

// classView is a class with its schedule ordered Monday first.
func classView(class *model.Class) *model.Class {
	out := *class
	out.Schedule = schedule.SortedSchedule(class.Schedule)
	return &out
}

// classIDParam validates the :id path parameter.
func classIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", false
	}
	return id, true
}

// ListClasses godoc
// GET /api/v1/classes
// Lists the caller's classes, oldest first.
func (h *ClassHandler) ListClasses(c *gin.Context) {
	classes, err := h.classService.ListOwned(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failService(c, h.log, err, response.ErrNotFound)
		return
	}

	views := make([]*model.Class, 0, len(classes))
	for i := range classes {
		views = append(views, classView(&classes[i]))
	}
	response.Success(c, http.StatusOK, gin.H{"classes": views})
}

// CreateClass godoc
// POST /api/v1/classes
// Creates a class owned by the caller.
func (h *ClassHandler) CreateClass(c *gin.Context) {
	var req model.ClassInput
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	class, err := h.classService.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		failService(c, h.log, err, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"class": classView(class)})
}

// GetClass godoc
// GET /api/v1/classes/:id
func (h *ClassHandler) GetClass(c *gin.Context) {
	id, ok := classIDParam(c)
	if !ok {
		return
	}

	class, err := h.classService.GetOwned(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		failService(c, h.log, err, response.ErrClassNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"class": classView(class)})
}

// UpdateClass godoc
// PUT /api/v1/classes/:id
// Replaces a class's editable fields.
func (h *ClassHandler) UpdateClass(c *gin.Context) {
	id, ok := classIDParam(c)
	if !ok {
		return
	}

	var req model.ClassInput
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	class, err := h.classService.Update(c.Request.Context(), id, middleware.UserID(c), &req)
	if err != nil {
		failService(c, h.log, err, response.ErrClassNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"class": classView(class)})
}

// SetActive godoc
// PATCH /api/v1/classes/:id/active
// Pauses or resumes a class without touching its schedule.
func (h *ClassHandler) SetActive(c *gin.Context) {
	id, ok := classIDParam(c)
	if !ok {
		return
	}

	var req model.SetActiveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	class, err := h.classService.SetActive(c.Request.Context(), id, middleware.UserID(c), *req.Active)
	if err != nil {
		failService(c, h.log, err, response.ErrClassNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"class": classView(class)})
}

// DeleteClass godoc
// DELETE /api/v1/classes/:id
// Deletes a class. Its completion history is kept.
func (h *ClassHandler) DeleteClass(c *gin.Context) {
	id, ok := classIDParam(c)
	if !ok {
		return
	}

	if err := h.classService.Delete(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		failService(c, h.log, err, response.ErrClassNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Class deleted"})
}
