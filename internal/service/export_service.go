package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/homeroom-api/internal/models"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/export"
)

type exportArchiveRepo interface {
	ListByWeek(ctx context.Context, week int, class string) ([]models.WeeklyArchive, error)
}

// ExportService renders report data as downloadable files.
type ExportService struct {
	archives exportArchiveRepo
	students reportStudentRepo
	conduct  reportConductRepo
	reports  *ReportService
	csv      *export.CSVExporter
	excel    *export.ExcelExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(archives exportArchiveRepo, students reportStudentRepo, conduct reportConductRepo, reports *ReportService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		archives: archives,
		students: students,
		conduct:  conduct,
		reports:  reports,
		csv:      export.NewCSVExporter(),
		excel:    export.NewExcelExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// WeekScores builds the week's score table: from the archive when the week
// has been rolled over, otherwise from the live ledger.
func (s *ExportService) weekScores(ctx context.Context, week int, class string) (export.Dataset, error) {
	data := export.Dataset{
		Headers: []string{"student_code", "name", "class", "final_score", "total_deductions"},
	}

	archived, err := s.archives.ListByWeek(ctx, week, class)
	if err != nil {
		return data, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read archive")
	}
	if len(archived) > 0 {
		for _, row := range archived {
			data.Rows = append(data.Rows, map[string]string{
				"student_code":     row.StudentCode,
				"name":             row.StudentName,
				"class":            row.StudentClass,
				"final_score":      strconv.FormatFloat(row.FinalScore, 'f', 1, 64),
				"total_deductions": strconv.FormatFloat(row.TotalDeductions, 'f', 1, 64),
			})
		}
		return data, nil
	}

	var students []models.Student
	if class != "" {
		students, err = s.students.ListByClass(ctx, class)
	} else {
		students, err = s.students.ListAll(ctx)
	}
	if err != nil {
		return data, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	deductions, err := s.conduct.WeekDeductions(ctx, week, class)
	if err != nil {
		return data, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week deductions")
	}
	for i := range students {
		student := &students[i]
		data.Rows = append(data.Rows, map[string]string{
			"student_code":     student.StudentCode,
			"name":             student.Name,
			"class":            student.StudentClass,
			"final_score":      strconv.FormatFloat(student.Score(), 'f', 1, 64),
			"total_deductions": strconv.FormatFloat(deductions[student.ID], 'f', 1, 64),
		})
	}
	return data, nil
}

// WeekScoresXLSX renders the week's score table as a workbook.
func (s *ExportService) WeekScoresXLSX(ctx context.Context, week int, class string) ([]byte, error) {
	data, err := s.weekScores(ctx, week, class)
	if err != nil {
		return nil, err
	}
	out, err := s.excel.Render(data, fmt.Sprintf("Week %d", week))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render workbook")
	}
	return out, nil
}

// WeekScoresCSV renders the week's score table as CSV.
func (s *ExportService) WeekScoresCSV(ctx context.Context, week int, class string) ([]byte, error) {
	data, err := s.weekScores(ctx, week, class)
	if err != nil {
		return nil, err
	}
	out, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return out, nil
}

// StudentReportPDF renders one student's conduct summary for printing.
func (s *ExportService) StudentReportPDF(ctx context.Context, student *models.Student) ([]byte, error) {
	aggs, err := s.reports.StudentWeekHistory(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{
		Headers: []string{"week", "violations", "points_lost"},
	}
	for _, agg := range aggs {
		data.Rows = append(data.Rows, map[string]string{
			"week":        strconv.Itoa(agg.WeekNumber),
			"violations":  strconv.Itoa(agg.Count),
			"points_lost": strconv.FormatFloat(agg.TotalPoints, 'f', 1, 64),
		})
	}
	title := fmt.Sprintf("Conduct report: %s (%s, class %s), current score %.1f",
		student.Name, student.StudentCode, student.StudentClass, student.Score())
	out, err := s.pdf.Render(data, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return out, nil
}

// RankingsXLSX renders the class leaderboard for a week as a workbook.
func (s *ExportService) RankingsXLSX(ctx context.Context, week int) ([]byte, error) {
	rankings, err := s.reports.ClassRankings(ctx, week)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{Headers: []string{"rank", "class", "weekly_deduct", "avg_score"}}
	for i, r := range rankings {
		data.Rows = append(data.Rows, map[string]string{
			"rank":          strconv.Itoa(i + 1),
			"class":         r.ClassName,
			"weekly_deduct": strconv.FormatFloat(r.WeeklyDeduct, 'f', 1, 64),
			"avg_score":     strconv.FormatFloat(r.AvgScore, 'f', 1, 64),
		})
	}
	out, err := s.excel.Render(data, fmt.Sprintf("Rankings W%d", week))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render workbook")
	}
	return out, nil
}
