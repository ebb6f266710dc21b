package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/homeroom-api/internal/models"
)

type gradeRepoMock struct {
	grades map[string]models.Grade
	nextID int
}

func newGradeRepoMock() *gradeRepoMock {
	return &gradeRepoMock{grades: make(map[string]models.Grade)}
}

func (m *gradeRepoMock) ListByStudent(_ context.Context, studentID string, semester int, schoolYear, subjectID string) ([]models.Grade, error) {
	var out []models.Grade
	for _, g := range m.grades {
		if g.StudentID != studentID || g.Semester != semester || g.SchoolYear != schoolYear {
			continue
		}
		if subjectID != "" && g.SubjectID != subjectID {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (m *gradeRepoMock) FindCell(_ context.Context, cell models.Grade) (*models.Grade, error) {
	for _, g := range m.grades {
		if g.StudentID == cell.StudentID && g.SubjectID == cell.SubjectID &&
			g.GradeType == cell.GradeType && g.ColumnIndex == cell.ColumnIndex &&
			g.Semester == cell.Semester && g.SchoolYear == cell.SchoolYear {
			found := g
			return &found, nil
		}
	}
	return nil, nil
}

func (m *gradeRepoMock) FindByID(_ context.Context, id string) (*models.Grade, error) {
	g, ok := m.grades[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (m *gradeRepoMock) Create(_ context.Context, g *models.Grade) error {
	m.nextID++
	g.ID = fmt.Sprintf("g-%d", m.nextID)
	m.grades[g.ID] = *g
	return nil
}

func (m *gradeRepoMock) UpdateScore(_ context.Context, id string, score float64) error {
	g := m.grades[id]
	g.Score = score
	m.grades[id] = g
	return nil
}

func (m *gradeRepoMock) Delete(_ context.Context, id string) error {
	delete(m.grades, id)
	return nil
}

func (m *gradeRepoMock) add(g models.Grade) {
	m.nextID++
	g.ID = fmt.Sprintf("g-%d", m.nextID)
	m.grades[g.ID] = g
}

type gradeSubjectMock struct {
	subjects []models.Subject
}

func (m *gradeSubjectMock) List(_ context.Context) ([]models.Subject, error) {
	return m.subjects, nil
}

func (m *gradeSubjectMock) FindByID(_ context.Context, id string) (*models.Subject, error) {
	for i := range m.subjects {
		if m.subjects[i].ID == id {
			return &m.subjects[i], nil
		}
	}
	return nil, nil
}

func mathSubject() models.Subject {
	return models.Subject{ID: "subj-math", Name: "Math", Code: "MATH", NumTXColumns: 3, NumGKColumns: 1, NumHKColumns: 1}
}

func newGradeFixture() (*GradeService, *gradeRepoMock) {
	grades := newGradeRepoMock()
	subjects := &gradeSubjectMock{subjects: []models.Subject{mathSubject()}}
	students := &reportStudentMock{students: []models.Student{
		{ID: "s1", StudentClass: "10A"},
	}}
	svc := NewGradeService(grades, subjects, students, NewAccessService(), nil, nil)
	return svc, grades
}

func TestUpsertCreatesThenOverwritesCell(t *testing.T) {
	svc, grades := newGradeFixture()
	req := UpsertGradeRequest{
		StudentID:   "s1",
		SubjectID:   "subj-math",
		GradeType:   "TX",
		ColumnIndex: 1,
		Score:       7.5,
		Semester:    1,
		SchoolYear:  "2025-2026",
	}

	created, err := svc.Upsert(context.Background(), adminClaims(), req)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, 7.5, created.Score)

	req.Score = 9
	updated, err := svc.Upsert(context.Background(), adminClaims(), req)
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, 9.0, grades.grades[created.ID].Score)
	require.Len(t, grades.grades, 1)
}

func TestUpsertRejectsColumnBeyondSubjectLayout(t *testing.T) {
	svc, _ := newGradeFixture()
	req := UpsertGradeRequest{
		StudentID:   "s1",
		SubjectID:   "subj-math",
		GradeType:   "GK",
		ColumnIndex: 2,
		Score:       8,
		Semester:    1,
		SchoolYear:  "2025-2026",
	}

	_, err := svc.Upsert(context.Background(), adminClaims(), req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "column index")
}

func TestUpsertRejectsForeignSubjectTeacher(t *testing.T) {
	svc, grades := newGradeFixture()
	req := UpsertGradeRequest{
		StudentID:   "s1",
		SubjectID:   "subj-math",
		GradeType:   "TX",
		ColumnIndex: 1,
		Score:       8,
		Semester:    1,
		SchoolYear:  "2025-2026",
	}

	_, err := svc.Upsert(context.Background(), subjectClaims("subj-lit"), req)
	requireForbidden(t, err)
	require.Empty(t, grades.grades)
}

func TestUpsertValidatesScoreRange(t *testing.T) {
	svc, _ := newGradeFixture()
	req := UpsertGradeRequest{
		StudentID:   "s1",
		SubjectID:   "subj-math",
		GradeType:   "TX",
		ColumnIndex: 1,
		Score:       10.5,
		Semester:    1,
		SchoolYear:  "2025-2026",
	}

	_, err := svc.Upsert(context.Background(), adminClaims(), req)
	require.Error(t, err)
}

func TestDeleteChecksSubjectScope(t *testing.T) {
	svc, grades := newGradeFixture()
	grades.add(models.Grade{StudentID: "s1", SubjectID: "subj-math", GradeType: models.GradeFrequent, ColumnIndex: 1, Score: 6, Semester: 1, SchoolYear: "2025-2026"})

	requireForbidden(t, svc.Delete(context.Background(), subjectClaims("subj-lit"), "g-1"))
	require.Len(t, grades.grades, 1)

	require.NoError(t, svc.Delete(context.Background(), subjectClaims("subj-math"), "g-1"))
	require.Empty(t, grades.grades)
}

func TestSubjectAverageWeightsCategories(t *testing.T) {
	avg, ok := SubjectAverage([]float64{8, 9}, []float64{7}, []float64{8.5})
	require.True(t, ok)
	// (8.5 + 2*7 + 3*8.5) / 6
	require.Equal(t, 8.0, avg)

	_, ok = SubjectAverage([]float64{8, 9}, nil, []float64{8.5})
	require.False(t, ok)
}

func TestTranscriptExcludesIncompleteSubjects(t *testing.T) {
	grades := newGradeRepoMock()
	lit := models.Subject{ID: "subj-lit", Name: "Literature", Code: "LIT", NumTXColumns: 3, NumGKColumns: 1, NumHKColumns: 1}
	subjects := &gradeSubjectMock{subjects: []models.Subject{mathSubject(), lit}}
	students := &reportStudentMock{students: []models.Student{{ID: "s1", StudentClass: "10A"}}}
	svc := NewGradeService(grades, subjects, students, NewAccessService(), nil, nil)

	base := models.Grade{StudentID: "s1", Semester: 1, SchoolYear: "2025-2026"}
	for _, g := range []models.Grade{
		{SubjectID: "subj-math", GradeType: models.GradeFrequent, ColumnIndex: 1, Score: 8},
		{SubjectID: "subj-math", GradeType: models.GradeMidterm, ColumnIndex: 1, Score: 7},
		{SubjectID: "subj-math", GradeType: models.GradeFinal, ColumnIndex: 1, Score: 9},
		// Literature has frequent scores only, so it must not average.
		{SubjectID: "subj-lit", GradeType: models.GradeFrequent, ColumnIndex: 1, Score: 10},
	} {
		g.StudentID = base.StudentID
		g.Semester = base.Semester
		g.SchoolYear = base.SchoolYear
		grades.add(g)
	}

	transcript, err := svc.Transcript(context.Background(), adminClaims(), "s1", 1, "2025-2026")
	require.NoError(t, err)
	require.Len(t, transcript.Subjects, 2)

	var math, litEntry *models.SubjectTranscript
	for i := range transcript.Subjects {
		switch transcript.Subjects[i].Subject.ID {
		case "subj-math":
			math = &transcript.Subjects[i]
		case "subj-lit":
			litEntry = &transcript.Subjects[i]
		}
	}
	require.NotNil(t, math)
	require.NotNil(t, math.Average)
	// (8 + 2*7 + 3*9) / 6 = 8.17
	require.Equal(t, 8.17, *math.Average)

	require.NotNil(t, litEntry)
	require.Nil(t, litEntry.Average)

	require.NotNil(t, transcript.GPA)
	require.Equal(t, 8.17, *transcript.GPA)
}

func TestTranscriptWithoutQualifyingSubjectHasNilGPA(t *testing.T) {
	svc, grades := newGradeFixture()
	grades.add(models.Grade{StudentID: "s1", SubjectID: "subj-math", GradeType: models.GradeFrequent, ColumnIndex: 1, Score: 9, Semester: 1, SchoolYear: "2025-2026"})

	transcript, err := svc.Transcript(context.Background(), adminClaims(), "s1", 1, "2025-2026")
	require.NoError(t, err)
	require.Len(t, transcript.Subjects, 1)
	require.Nil(t, transcript.Subjects[0].Average)
	require.Nil(t, transcript.GPA)
}

func TestListByStudentScopedByHomeroom(t *testing.T) {
	svc, _ := newGradeFixture()

	_, err := svc.ListByStudent(context.Background(), homeroomClaims("10B"), "s1", 1, "2025-2026", "")
	requireForbidden(t, err)

	_, err = svc.ListByStudent(context.Background(), homeroomClaims("10A"), "s1", 1, "2025-2026", "")
	require.NoError(t, err)
}
