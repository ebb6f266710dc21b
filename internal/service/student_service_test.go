package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/homeroom-api/internal/models"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
)

type rosterRepoMock struct {
	students []models.Student
	nextID   int
	deleted  []string
}

func (m *rosterRepoMock) add(id, code, name, class string) {
	m.students = append(m.students, models.Student{ID: id, StudentCode: code, Name: name, StudentClass: class})
}

func (m *rosterRepoMock) List(_ context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range m.students {
		if filter.Class != "" && s.StudentClass != filter.Class {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *rosterRepoMock) ListAll(_ context.Context) ([]models.Student, error) {
	return append([]models.Student(nil), m.students...), nil
}

func (m *rosterRepoMock) FindByID(_ context.Context, id string) (*models.Student, error) {
	for i := range m.students {
		if m.students[i].ID == id {
			return &m.students[i], nil
		}
	}
	return nil, nil
}

func (m *rosterRepoMock) FindByCode(_ context.Context, code string) (*models.Student, error) {
	for i := range m.students {
		if m.students[i].StudentCode == code {
			return &m.students[i], nil
		}
	}
	return nil, nil
}

func (m *rosterRepoMock) Create(_ context.Context, s *models.Student) error {
	m.nextID++
	s.ID = fmt.Sprintf("s-%d", m.nextID)
	m.students = append(m.students, *s)
	return nil
}

func (m *rosterRepoMock) Update(_ context.Context, s *models.Student) error {
	for i := range m.students {
		if m.students[i].ID == s.ID {
			m.students[i] = *s
			return nil
		}
	}
	return nil
}

func (m *rosterRepoMock) DeleteCascade(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	for i := range m.students {
		if m.students[i].ID == id {
			m.students = append(m.students[:i], m.students[i+1:]...)
			break
		}
	}
	return nil
}

type classRepoMock struct {
	classes map[string]*models.ClassRoom
	created []string
}

func newClassRepoMock() *classRepoMock {
	return &classRepoMock{classes: make(map[string]*models.ClassRoom)}
}

func (m *classRepoMock) FindByName(_ context.Context, name string) (*models.ClassRoom, error) {
	return m.classes[name], nil
}

func (m *classRepoMock) Create(_ context.Context, c *models.ClassRoom) error {
	c.ID = fmt.Sprintf("class-%d", len(m.classes)+1)
	m.classes[c.Name] = c
	m.created = append(m.created, c.Name)
	return nil
}

func newRosterFixture() (*StudentService, *rosterRepoMock, *classRepoMock) {
	students := &rosterRepoMock{}
	classes := newClassRepoMock()
	svc := NewStudentService(students, classes, NewAccessService(), nil, nil)
	return svc, students, classes
}

func TestCreateStudentAutoCreatesClass(t *testing.T) {
	svc, students, classes := newRosterFixture()

	created, err := svc.Create(context.Background(), adminClaims(), CreateStudentRequest{
		StudentCode:  "34 TOAN - 001001",
		Name:         "Nguyễn Văn An",
		StudentClass: "10A",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"10A"}, classes.created)
	assert.Len(t, students.students, 1)

	// Same class again should not create a second row.
	_, err = svc.Create(context.Background(), adminClaims(), CreateStudentRequest{
		StudentCode:  "34 TOAN - 001002",
		Name:         "Trần Thị Bích",
		StudentClass: "10A",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10A"}, classes.created)
}

func TestCreateStudentRejectsDuplicateCode(t *testing.T) {
	svc, students, _ := newRosterFixture()
	students.add("s1", "34 TOAN - 001001", "An", "10A")

	_, err := svc.Create(context.Background(), adminClaims(), CreateStudentRequest{
		StudentCode:  "34 TOAN - 001001",
		Name:         "Someone Else",
		StudentClass: "10B",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "already exists")
}

func TestCreateStudentHomeroomScopedToOwnClass(t *testing.T) {
	svc, _, _ := newRosterFixture()

	_, err := svc.Create(context.Background(), homeroomClaims("10A"), CreateStudentRequest{
		StudentCode:  "34 TOAN - 001001",
		Name:         "An",
		StudentClass: "10B",
	})
	requireForbidden(t, err)

	_, err = svc.Create(context.Background(), homeroomClaims("10A"), CreateStudentRequest{
		StudentCode:  "34 TOAN - 001001",
		Name:         "An",
		StudentClass: "10A",
	})
	require.NoError(t, err)
}

func TestDeleteStudentCascades(t *testing.T) {
	svc, students, _ := newRosterFixture()
	students.add("s1", "c1", "An", "10A")

	require.NoError(t, svc.Delete(context.Background(), adminClaims(), "s1"))
	assert.Equal(t, []string{"s1"}, students.deleted)

	err := svc.Delete(context.Background(), adminClaims(), "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFindByAnyCodeFallsBackToNormalizedForm(t *testing.T) {
	svc, students, _ := newRosterFixture()
	students.add("s1", "34 TOAN - 001035", "An", "10A")

	exact, err := svc.FindByAnyCode(context.Background(), "34 TOAN - 001035")
	require.NoError(t, err)
	require.NotNil(t, exact)
	assert.Equal(t, "s1", exact.ID)

	// OCR output tends to lowercase and carry diacritics; the normalized
	// scan should still land on the same student.
	fuzzy, err := svc.FindByAnyCode(context.Background(), " 34  toán - 001035 ")
	require.NoError(t, err)
	require.NotNil(t, fuzzy)
	assert.Equal(t, "s1", fuzzy.ID)

	missing, err := svc.FindByAnyCode(context.Background(), "34 TOAN - 001999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSearchByNameIgnoresDiacritics(t *testing.T) {
	svc, students, _ := newRosterFixture()
	students.add("s1", "c1", "Nguyễn Văn An", "10A")
	students.add("s2", "c2", "Trần Thị Bích", "10A")
	students.add("s3", "c3", "Phạm Văn Cường", "10B")

	matches, err := svc.SearchByName(context.Background(), "van")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	matches, err = svc.SearchByName(context.Background(), "bích")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "s2", matches[0].ID)

	matches, err = svc.SearchByName(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestNextGeneratedCodeContinuesSequence(t *testing.T) {
	svc, students, _ := newRosterFixture()
	students.add("s1", "34 TOAN - 001035", "An", "10A")
	students.add("s2", "34 TOAN - 001012", "Bích", "10A")
	students.add("s3", "34 VAN - 001050", "Cường", "10C")

	code, err := svc.NextGeneratedCode(context.Background(), "34", "TOAN")
	require.NoError(t, err)
	assert.Equal(t, "34 TOAN - 001036", code)

	code, err = svc.NextGeneratedCode(context.Background(), "34", "ly")
	require.NoError(t, err)
	assert.Equal(t, "34 LY - 001001", code)
}
