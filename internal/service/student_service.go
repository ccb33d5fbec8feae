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

// StudentRepository persists student records.
type StudentRepository interface {
	FindByCode(ctx context.Context, code string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

// RegisterStudentRequest is the payload for registering a student.
type RegisterStudentRequest struct {
	Code      string `json:"code" validate:"required,min=5"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Program   string `json:"program" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone"`
}

// StudentService manages student registration and lookup.
type StudentService struct {
	repo      StudentRepository
	logger    *zap.Logger
	validator *validator.Validate
}

// NewStudentService constructs the service.
func NewStudentService(repo StudentRepository, logger *zap.Logger) *StudentService {
	return &StudentService{repo: repo, logger: logger, validator: validator.New()}
}

// Register validates and persists a new student.
func (s *StudentService) Register(ctx context.Context, req RegisterStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := models.NewStudent(req.Code, req.FirstName, req.LastName, req.Program, req.Email, req.Phone)
	if err != nil {
		return nil, err
	}

	if !models.KnownProgram(student.Program) {
		s.logger.Warn("registering student with unknown program",
			zap.String("code", student.Code),
			zap.String("program", student.Program))
	}

	if existing, err := s.repo.FindByCode(ctx, student.Code); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student "+student.Code+" already registered")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, s.storageError(err, "check student")
	}

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, s.storageError(err, "create student")
	}

	s.logger.Info("student registered", zap.String("code", student.Code), zap.String("program", student.Program))
	return student, nil
}

// Get returns one student by code.
func (s *StudentService) Get(ctx context.Context, code string) (*models.Student, error) {
	code = normalizeCode(code)
	student, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student "+code+" not found")
		}
		return nil, s.storageError(err, "load student")
	}
	return student, nil
}

// List returns students matching the filter plus the total match count.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, s.storageError(err, "list students")
	}
	return students, total, nil
}

func (s *StudentService) storageError(err error, op string) error {
	s.logger.Error("storage operation failed", zap.String("op", op), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, appErrors.ErrStorageUnavailable.Message)
}
