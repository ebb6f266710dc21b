package service

import (
	"github.com/noah-isme/homeroom-api/internal/models"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
)

// AccessService is the single place role scoping is decided. Every detail
// view and mutation consults it before touching storage; a rejection means
// the operation is never attempted.
type AccessService struct{}

// NewAccessService constructs the service.
func NewAccessService() *AccessService {
	return &AccessService{}
}

// ScopeStudents narrows a list filter to the caller's visible students.
// Homeroom teachers see only their assigned class; admins and subject
// teachers see everyone.
func (s *AccessService) ScopeStudents(claims *models.JWTClaims, filter models.StudentFilter) models.StudentFilter {
	if claims == nil {
		return filter
	}
	if claims.Role == models.RoleHomeroom && claims.AssignedClass != "" {
		filter.Class = claims.AssignedClass
	}
	return filter
}

// CanAccessStudent reports whether the caller may view or mutate the student.
func (s *AccessService) CanAccessStudent(claims *models.JWTClaims, student *models.Student) bool {
	if claims == nil || student == nil {
		return false
	}
	switch claims.Role {
	case models.RoleAdmin:
		return true
	case models.RoleHomeroom:
		return claims.AssignedClass != "" && student.StudentClass == claims.AssignedClass
	case models.RoleSubjectTeacher:
		// Subject teachers read every student for grading purposes.
		return true
	default:
		return false
	}
}

// CanWriteSubject reports whether the caller may write grade rows for the
// subject. Homeroom teachers may read all subjects but write none outside
// their class roster paths; subject teachers write only their own subject.
func (s *AccessService) CanWriteSubject(claims *models.JWTClaims, subjectID string) bool {
	if claims == nil {
		return false
	}
	switch claims.Role {
	case models.RoleAdmin:
		return true
	case models.RoleHomeroom:
		return true
	case models.RoleSubjectTeacher:
		return claims.AssignedSubjectID != "" && claims.AssignedSubjectID == subjectID
	default:
		return false
	}
}

// CanMutateStudent reports whether the caller may change the student's
// ledger or record. Subject teachers read broadly but never write here.
func (s *AccessService) CanMutateStudent(claims *models.JWTClaims, student *models.Student) bool {
	if claims == nil || student == nil {
		return false
	}
	switch claims.Role {
	case models.RoleAdmin:
		return true
	case models.RoleHomeroom:
		return claims.AssignedClass != "" && student.StudentClass == claims.AssignedClass
	default:
		return false
	}
}

// RequireStudent returns ErrForbidden unless CanAccessStudent allows the
// caller, so detail paths can guard with one call.
func (s *AccessService) RequireStudent(claims *models.JWTClaims, student *models.Student) error {
	if !s.CanAccessStudent(claims, student) {
		return appErrors.Clone(appErrors.ErrForbidden, "student is outside your assigned scope")
	}
	return nil
}

// RequireStudentWrite returns ErrForbidden unless the caller may mutate the
// student. Checked before any ledger side effect.
func (s *AccessService) RequireStudentWrite(claims *models.JWTClaims, student *models.Student) error {
	if !s.CanMutateStudent(claims, student) {
		return appErrors.Clone(appErrors.ErrForbidden, "student is outside your assigned scope")
	}
	return nil
}

// RequireSubjectWrite returns ErrForbidden unless the caller may write
// grades for the subject.
func (s *AccessService) RequireSubjectWrite(claims *models.JWTClaims, subjectID string) error {
	if !s.CanWriteSubject(claims, subjectID) {
		return appErrors.Clone(appErrors.ErrForbidden, "subject is outside your assigned scope")
	}
	return nil
}
