package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusops/enrollment-api/internal/models"
	"github.com/campusops/enrollment-api/internal/rules"
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

const (
	statsCacheKey      = "enrollment:stats"
	availableCachePref = "enrollment:available:"
	availableCacheGlob = "enrollment:available:*"
)

// StudentReader looks up students for the enrollment flow.
type StudentReader interface {
	FindByCode(ctx context.Context, code string) (*models.Student, error)
}

// CourseReader looks up courses for the enrollment flow.
type CourseReader interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	ListWithAvailableSeats(ctx context.Context) ([]models.Course, error)
}

// EnrollmentStore persists enrollments and their aggregates.
type EnrollmentStore interface {
	FindActive(ctx context.Context, studentCode, courseCode string) (*models.Enrollment, error)
	ActiveByStudent(ctx context.Context, studentCode string) ([]models.Enrollment, error)
	CompletedByStudent(ctx context.Context, studentCode string) ([]models.Enrollment, error)
	CreateWithSeat(ctx context.Context, enrollment *models.Enrollment) (bool, error)
	TransitionActive(ctx context.Context, id string, to models.EnrollmentState, at time.Time) (bool, error)
	DetailsByStudent(ctx context.Context, studentCode string) ([]models.EnrollmentDetail, error)
	RosterByCourse(ctx context.Context, courseCode string) ([]models.RosterEntry, error)
	CountByState(ctx context.Context) (map[models.EnrollmentState]int, error)
	ActiveCountByProgram(ctx context.Context) (map[string]int, error)
	ActiveCountByCourse(ctx context.Context) (map[string]int, error)
	CountDistinctActiveStudents(ctx context.Context) (int, error)
}

// EnrollRequest is the payload for creating an enrollment.
type EnrollRequest struct {
	StudentCode string `json:"student_code" validate:"required,min=5"`
	CourseCode  string `json:"course_code" validate:"required,min=3"`
}

// CancelRequest is the payload for cancelling an enrollment.
type CancelRequest struct {
	StudentCode string `json:"student_code" validate:"required,min=5"`
	CourseCode  string `json:"course_code" validate:"required,min=3"`
}

// EnrollmentService orchestrates the enrollment lifecycle: it loads the
// snapshot, asks the rules package for a verdict and commits admitted requests
// transactionally.
type EnrollmentService struct {
	students    StudentReader
	courses     CourseReader
	enrollments EnrollmentStore
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	validator   *validator.Validate
	courseLocks *keyedMutex
	pairLocks   *keyedMutex
	statsTTL    time.Duration
	listingTTL  time.Duration
	now         func() time.Time
}

// NewEnrollmentService constructs the orchestrator.
func NewEnrollmentService(
	students StudentReader,
	courses CourseReader,
	enrollments EnrollmentStore,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	statsTTL, listingTTL time.Duration,
) *EnrollmentService {
	return &EnrollmentService{
		students:    students,
		courses:     courses,
		enrollments: enrollments,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		validator:   validator.New(),
		courseLocks: newKeyedMutex(),
		pairLocks:   newKeyedMutex(),
		statsTTL:    statsTTL,
		listingTTL:  listingTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Enroll evaluates the enrollment rules for the pair and, when admitted,
// commits the new ACTIVE enrollment together with its seat reservation.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment request")
	}

	enrollment, err := models.NewEnrollment(req.StudentCode, req.CourseCode)
	if err != nil {
		return nil, err
	}

	unlockCourse := s.courseLocks.Lock(enrollment.CourseCode)
	defer unlockCourse()
	unlockPair := s.pairLocks.Lock(enrollment.StudentCode + "/" + enrollment.CourseCode)
	defer unlockPair()

	student, err := s.findStudent(ctx, enrollment.StudentCode)
	if err != nil {
		return nil, err
	}
	course, err := s.findCourse(ctx, enrollment.CourseCode)
	if err != nil {
		return nil, err
	}

	active, err := s.enrollments.ActiveByStudent(ctx, enrollment.StudentCode)
	if err != nil {
		return nil, s.storageError(err, "load active enrollments")
	}
	completed, err := s.enrollments.CompletedByStudent(ctx, enrollment.StudentCode)
	if err != nil {
		return nil, s.storageError(err, "load completed enrollments")
	}

	decision := rules.CanEnroll(student, course, active, completed)
	s.metrics.RecordDecision(string(decision.Reason))
	if !decision.Allowed {
		s.logger.Info("enrollment rejected",
			zap.String("student_code", enrollment.StudentCode),
			zap.String("course_code", enrollment.CourseCode),
			zap.String("reason", string(decision.Reason)))
		return nil, rejectionError(decision)
	}

	enrollment.CreatedAt = s.now()
	committed, err := s.enrollments.CreateWithSeat(ctx, enrollment)
	if err != nil {
		return nil, s.storageError(err, "commit enrollment")
	}
	if !committed {
		// The seat guard lost a race with another writer.
		s.metrics.RecordDecision(string(rules.ReasonNoSeats))
		return nil, rejectionError(rules.Decision{
			Reason:  rules.ReasonNoSeats,
			Message: rules.Message(rules.ReasonNoSeats),
		})
	}

	s.invalidateCaches(ctx)
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_code", enrollment.StudentCode),
		zap.String("course_code", enrollment.CourseCode))
	return enrollment, nil
}

// Cancel moves the pair's ACTIVE enrollment to CANCELLED when the cancellation
// window still admits it, releasing the seat in the same transaction.
func (s *EnrollmentService) Cancel(ctx context.Context, req CancelRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancellation request")
	}

	studentCode := normalizeCode(req.StudentCode)
	courseCode := normalizeCode(req.CourseCode)

	unlockCourse := s.courseLocks.Lock(courseCode)
	defer unlockCourse()
	unlockPair := s.pairLocks.Lock(studentCode + "/" + courseCode)
	defer unlockPair()

	if _, err := s.findStudent(ctx, studentCode); err != nil {
		return nil, err
	}
	if _, err := s.findCourse(ctx, courseCode); err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.FindActive(ctx, studentCode, courseCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordDecision(string(rules.ReasonNotActive))
			return nil, rejectionError(rules.Decision{
				Reason:  rules.ReasonNotActive,
				Message: rules.Message(rules.ReasonNotActive),
			})
		}
		return nil, s.storageError(err, "load enrollment")
	}

	now := s.now()
	decision := rules.CanCancel(enrollment, now)
	s.metrics.RecordDecision(string(decision.Reason))
	if !decision.Allowed {
		s.logger.Info("cancellation rejected",
			zap.String("student_code", studentCode),
			zap.String("course_code", courseCode),
			zap.String("reason", string(decision.Reason)))
		return nil, rejectionError(decision)
	}

	next, err := models.Transition(enrollment.State, models.EnrollmentStateCancelled)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, err.Error())
	}

	committed, err := s.enrollments.TransitionActive(ctx, enrollment.ID, next, now)
	if err != nil {
		return nil, s.storageError(err, "commit cancellation")
	}
	if !committed {
		// Another writer closed the enrollment between the read and the update.
		s.metrics.RecordDecision(string(rules.ReasonNotActive))
		return nil, rejectionError(rules.Decision{
			Reason:  rules.ReasonNotActive,
			Message: rules.Message(rules.ReasonNotActive),
		})
	}

	enrollment.State = next
	enrollment.ClosedAt = &now
	s.invalidateCaches(ctx)
	s.logger.Info("enrollment cancelled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_code", studentCode),
		zap.String("course_code", courseCode))
	return enrollment, nil
}

// AvailableCoursesFor returns the course summaries the student could enroll in
// right now. The listing reuses the enroll predicates so it never advertises a
// course the evaluator would reject.
func (s *EnrollmentService) AvailableCoursesFor(ctx context.Context, studentCode string) ([]models.CourseSummary, error) {
	studentCode = normalizeCode(studentCode)

	cacheKey := availableCachePref + studentCode
	var cached []models.CourseSummary
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	student, err := s.findStudent(ctx, studentCode)
	if err != nil {
		return nil, err
	}

	active, err := s.enrollments.ActiveByStudent(ctx, studentCode)
	if err != nil {
		return nil, s.storageError(err, "load active enrollments")
	}
	completed, err := s.enrollments.CompletedByStudent(ctx, studentCode)
	if err != nil {
		return nil, s.storageError(err, "load completed enrollments")
	}

	courses, err := s.courses.ListWithAvailableSeats(ctx)
	if err != nil {
		return nil, s.storageError(err, "list courses")
	}

	activeCodes := make(map[string]bool, len(active))
	for _, e := range active {
		activeCodes[e.CourseCode] = true
	}
	atLimit := len(active) >= rules.MaxActiveCourses

	summaries := make([]models.CourseSummary, 0, len(courses))
	for i := range courses {
		course := &courses[i]
		if activeCodes[course.Code] || atLimit {
			continue
		}
		if !rules.MeetsPrerequisites(course.Code, completed) {
			continue
		}
		if !rules.ProgramAllowed(student.Program, course.Code) {
			continue
		}
		summaries = append(summaries, course.Summary())
	}

	if err := s.cache.Set(ctx, cacheKey, summaries, s.listingTTL); err != nil {
		s.logger.Debug("caching available courses failed", zap.Error(err))
	}
	return summaries, nil
}

// Statistics aggregates enrollment counts, percentages and breakdowns.
func (s *EnrollmentService) Statistics(ctx context.Context) (*models.EnrollmentStats, error) {
	var cached models.EnrollmentStats
	if hit, _ := s.cache.Get(ctx, statsCacheKey, &cached); hit {
		return &cached, nil
	}

	byState, err := s.enrollments.CountByState(ctx)
	if err != nil {
		return nil, s.storageError(err, "count enrollments")
	}
	byProgram, err := s.enrollments.ActiveCountByProgram(ctx)
	if err != nil {
		return nil, s.storageError(err, "count by program")
	}
	byCourse, err := s.enrollments.ActiveCountByCourse(ctx)
	if err != nil {
		return nil, s.storageError(err, "count by course")
	}
	studentsWithActive, err := s.enrollments.CountDistinctActiveStudents(ctx)
	if err != nil {
		return nil, s.storageError(err, "count active students")
	}

	active := byState[models.EnrollmentStateActive]
	cancelled := byState[models.EnrollmentStateCancelled]
	completed := byState[models.EnrollmentStateCompleted]
	total := active + cancelled + completed

	stats := &models.EnrollmentStats{
		Total:              total,
		Active:             active,
		Cancelled:          cancelled,
		Completed:          completed,
		StudentsWithActive: studentsWithActive,
		ActivePct:          models.Percentage(active, total),
		CancelledPct:       models.Percentage(cancelled, total),
		CompletedPct:       models.Percentage(completed, total),
		ByProgram:          byProgram,
		ByCourse:           byCourse,
		GeneratedAt:        s.now(),
	}

	if err := s.cache.Set(ctx, statsCacheKey, stats, s.statsTTL); err != nil {
		s.logger.Debug("caching statistics failed", zap.Error(err))
	}
	return stats, nil
}

// EnrollmentsForStudent returns the student's full enrollment history enriched
// with course details.
func (s *EnrollmentService) EnrollmentsForStudent(ctx context.Context, studentCode string) ([]models.EnrollmentDetail, error) {
	studentCode = normalizeCode(studentCode)
	if _, err := s.findStudent(ctx, studentCode); err != nil {
		return nil, err
	}
	details, err := s.enrollments.DetailsByStudent(ctx, studentCode)
	if err != nil {
		return nil, s.storageError(err, "list enrollment details")
	}
	return details, nil
}

// RosterForCourse returns the students actively enrolled in a course.
func (s *EnrollmentService) RosterForCourse(ctx context.Context, courseCode string) ([]models.RosterEntry, error) {
	courseCode = normalizeCode(courseCode)
	if _, err := s.findCourse(ctx, courseCode); err != nil {
		return nil, err
	}
	roster, err := s.enrollments.RosterByCourse(ctx, courseCode)
	if err != nil {
		return nil, s.storageError(err, "list roster")
	}
	return roster, nil
}

func (s *EnrollmentService) findStudent(ctx context.Context, code string) (*models.Student, error) {
	student, err := s.students.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student "+code+" not found")
		}
		return nil, s.storageError(err, "load student")
	}
	return student, nil
}

func (s *EnrollmentService) findCourse(ctx context.Context, code string) (*models.Course, error) {
	course, err := s.courses.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course "+code+" not found")
		}
		return nil, s.storageError(err, "load course")
	}
	return course, nil
}

func (s *EnrollmentService) storageError(err error, op string) error {
	s.logger.Error("storage operation failed", zap.String("op", op), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, appErrors.ErrStorageUnavailable.Message)
}

// invalidateCaches drops the stats entry and every per-student listing. Any
// commit can change another student's admissible set through the seat counter,
// so listings are invalidated wholesale.
func (s *EnrollmentService) invalidateCaches(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, statsCacheKey); err != nil {
		return
	}
	_ = s.cache.Invalidate(ctx, availableCacheGlob)
}

// rejectionError converts a rule denial into the typed error the transport
// layer maps to a status code. The reason code becomes the error code.
func rejectionError(decision rules.Decision) *appErrors.Error {
	status := statusForReason(decision.Reason)
	return appErrors.New(string(decision.Reason), status, decision.Message)
}

func statusForReason(reason rules.ReasonCode) int {
	switch reason {
	case rules.ReasonNoSeats, rules.ReasonAlreadyEnrolled:
		return appErrors.ErrConflict.Status
	case rules.ReasonProgramRestricted:
		return http.StatusForbidden
	default:
		return appErrors.ErrPreconditionFailed.Status
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
