package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusops/enrollment-api/internal/models"
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

// CourseRepository persists course records.
type CourseRepository interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Code       string `json:"code" validate:"required,min=3"`
	Name       string `json:"name" validate:"required"`
	Credits    int    `json:"credits" validate:"required,min=1,max=6"`
	Instructor string `json:"instructor"`
	Schedule   string `json:"schedule"`
	TotalSeats int    `json:"total_seats" validate:"required,min=1"`
}

// CourseService manages the course catalog.
type CourseService struct {
	repo      CourseRepository
	logger    *zap.Logger
	validator *validator.Validate
}

// NewCourseService constructs the service.
func NewCourseService(repo CourseRepository, logger *zap.Logger) *CourseService {
	return &CourseService{repo: repo, logger: logger, validator: validator.New()}
}

// Create validates and persists a new course.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := models.NewCourse(req.Code, req.Name, req.Credits, req.Instructor, req.Schedule, req.TotalSeats)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindByCode(ctx, course.Code); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course "+course.Code+" already exists")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, s.storageError(err, "check course")
	}

	if err := s.repo.Create(ctx, course); err != nil {
		return nil, s.storageError(err, "create course")
	}

	s.logger.Info("course created", zap.String("code", course.Code), zap.Int("total_seats", course.TotalSeats))
	return course, nil
}

// Get returns one course by code.
func (s *CourseService) Get(ctx context.Context, code string) (*models.Course, error) {
	code = normalizeCode(code)
	course, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course "+code+" not found")
		}
		return nil, s.storageError(err, "load course")
	}
	return course, nil
}

// List returns courses matching the filter plus the total match count.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, s.storageError(err, "list courses")
	}
	return courses, total, nil
}

func (s *CourseService) storageError(err error, op string) error {
	s.logger.Error("storage operation failed", zap.String("op", op), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, appErrors.ErrStorageUnavailable.Message)
}
