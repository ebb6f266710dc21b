package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TeacherRole determines the access scope applied to every student/subject
// touching operation.
type TeacherRole string

const (
	RoleAdmin          TeacherRole = "admin"
	RoleHomeroom       TeacherRole = "homeroom_teacher"
	RoleSubjectTeacher TeacherRole = "subject_teacher"
)

// Teacher is a system account.
type Teacher struct {
	ID                string      `db:"id" json:"id"`
	Username          string      `db:"username" json:"username"`
	PasswordHash      string      `db:"password_hash" json:"-"`
	FullName          string      `db:"full_name" json:"full_name"`
	Role              TeacherRole `db:"role" json:"role"`
	AssignedClass     *string     `db:"assigned_class" json:"assigned_class,omitempty"`
	AssignedSubjectID *string     `db:"assigned_subject_id" json:"assigned_subject_id,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
}

// LoginRequest holds credentials for authenticating a teacher.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and teacher info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	Teacher     Teacher   `json:"teacher"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims is the access-token payload. The assignment fields feed the
// access filter; they are opaque to everything else.
type JWTClaims struct {
	TeacherID         string      `json:"teacher_id"`
	Role              TeacherRole `json:"role"`
	FullName          string      `json:"full_name"`
	AssignedClass     string      `json:"assigned_class,omitempty"`
	AssignedSubjectID string      `json:"assigned_subject_id,omitempty"`
	jwt.RegisteredClaims
}
