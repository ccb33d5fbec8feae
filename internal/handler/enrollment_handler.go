package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusops/enrollment-api/internal/models"
	"github.com/campusops/enrollment-api/internal/service"
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
	"github.com/campusops/enrollment-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, req service.EnrollRequest) (*models.Enrollment, error)
	Cancel(ctx context.Context, req service.CancelRequest) (*models.Enrollment, error)
	AvailableCoursesFor(ctx context.Context, studentCode string) ([]models.CourseSummary, error)
	Statistics(ctx context.Context) (*models.EnrollmentStats, error)
	EnrollmentsForStudent(ctx context.Context, studentCode string) ([]models.EnrollmentDetail, error)
	RosterForCourse(ctx context.Context, courseCode string) ([]models.RosterEntry, error)
}

// EnrollmentHandler exposes the enrollment endpoints.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// Enroll godoc
// @Summary Enroll a student in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.service.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Cancel godoc
// @Summary Cancel an active enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.CancelRequest true "Cancellation payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments/cancel [post]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	var req service.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.service.Cancel(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// AvailableCourses godoc
// @Summary List courses a student can enroll in
// @Tags Enrollments
// @Produce json
// @Param code path string true "Student code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{code}/available-courses [get]
func (h *EnrollmentHandler) AvailableCourses(c *gin.Context) {
	courses, err := h.service.AvailableCoursesFor(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// StudentEnrollments godoc
// @Summary List a student's enrollment history
// @Tags Enrollments
// @Produce json
// @Param code path string true "Student code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{code}/enrollments [get]
func (h *EnrollmentHandler) StudentEnrollments(c *gin.Context) {
	details, err := h.service.EnrollmentsForStudent(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// Roster godoc
// @Summary List students actively enrolled in a course
// @Tags Enrollments
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{code}/roster [get]
func (h *EnrollmentHandler) Roster(c *gin.Context) {
	roster, err := h.service.RosterForCourse(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Statistics godoc
// @Summary Enrollment statistics
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /statistics [get]
func (h *EnrollmentHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
