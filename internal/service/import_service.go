package service

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/homeroom-api/internal/models"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/textnorm"
)

// Accepted spreadsheet date layouts, tried in order.
var importDateLayouts = []string{"02/01/2006", "2006-01-02", "01-02-06"}

var violationColumns = []string{"student_code", "violation_type", "points", "date"}

// ImportService parses uploaded workbooks into ledger and roster operations.
// Parsing never mutates state itself; the ledger and student services do.
type ImportService struct {
	ledger   *LedgerService
	students *StudentService
	maxRows  int
	logger   *zap.Logger
}

// NewImportService constructs the service.
func NewImportService(ledger *LedgerService, students *StudentService, maxRows int, logger *zap.Logger) *ImportService {
	if maxRows <= 0 {
		maxRows = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{ledger: ledger, students: students, maxRows: maxRows, logger: logger}
}

// ImportViolations parses the workbook's first sheet into event specs and
// hands them to the ledger's batch path. Header row is required; row errors
// come back per row, never aborting the rest.
func (s *ImportService) ImportViolations(ctx context.Context, claims *models.JWTClaims, actorID *string, workbook []byte, weekNumber int) (BulkApplyResult, error) {
	rows, err := s.sheetRows(workbook)
	if err != nil {
		return BulkApplyResult{}, err
	}
	if len(rows) < 2 {
		return BulkApplyResult{}, appErrors.Clone(appErrors.ErrValidation, "workbook has no data rows")
	}

	header := normalizeHeader(rows[0])
	colIndex := make(map[string]int)
	for i, name := range header {
		colIndex[name] = i
	}
	for _, required := range violationColumns[:3] {
		if _, ok := colIndex[required]; !ok {
			return BulkApplyResult{}, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("missing required column %q", required))
		}
	}

	result := BulkApplyResult{Errors: []string{}}
	var specs []models.EventSpec
	for i, row := range rows[1:] {
		rowNum := i + 2
		if i >= s.maxRows {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: import limit of %d rows reached", rowNum, s.maxRows))
			break
		}
		code := cell(row, colIndex["student_code"])
		typeName := cell(row, colIndex["violation_type"])
		pointsRaw := cell(row, colIndex["points"])
		if code == "" && typeName == "" {
			continue
		}
		points, err := strconv.Atoi(strings.TrimSpace(pointsRaw))
		if err != nil || points <= 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: invalid points %q", rowNum, pointsRaw))
			continue
		}
		spec := models.EventSpec{
			StudentCode: code,
			TypeName:    typeName,
			Points:      points,
			WeekNumber:  weekNumber,
		}
		if idx, ok := colIndex["date"]; ok {
			if date, ok := parseImportDate(cell(row, idx)); ok {
				spec.DateCommitted = date
			}
		}
		specs = append(specs, spec)
	}

	batch := s.ledger.BulkApply(ctx, claims, actorID, specs)
	batch.Errors = append(result.Errors, batch.Errors...)
	return batch, nil
}

// RosterImportResult reports one roster upload.
type RosterImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// ImportRoster enrolls students from a workbook with columns name and class,
// plus an optional student_code. Missing codes are generated from the course
// and the class's specialization letters; duplicate codes are skipped.
func (s *ImportService) ImportRoster(ctx context.Context, claims *models.JWTClaims, workbook []byte, courseCode string) (*RosterImportResult, error) {
	rows, err := s.sheetRows(workbook)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workbook has no data rows")
	}

	header := normalizeHeader(rows[0])
	colIndex := make(map[string]int)
	for i, name := range header {
		colIndex[name] = i
	}
	for _, required := range []string{"name", "class"} {
		if _, ok := colIndex[required]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("missing required column %q", required))
		}
	}

	result := &RosterImportResult{Errors: []string{}}
	for i, row := range rows[1:] {
		rowNum := i + 2
		if i >= s.maxRows {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: import limit of %d rows reached", rowNum, s.maxRows))
			break
		}
		name := cell(row, colIndex["name"])
		class := cell(row, colIndex["class"])
		if name == "" && class == "" {
			continue
		}
		if name == "" || class == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: name and class are both required", rowNum))
			continue
		}

		code := ""
		if idx, ok := colIndex["student_code"]; ok {
			code = cell(row, idx)
		}
		if code == "" {
			code, err = s.students.NextGeneratedCode(ctx, courseCode, textnorm.Letters(class))
			if err != nil {
				return nil, err
			}
		}

		_, err := s.students.Create(ctx, claims, CreateStudentRequest{
			StudentCode:  code,
			Name:         name,
			StudentClass: class,
		})
		if err != nil {
			if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrConflict.Code {
				result.Skipped++
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		result.Created++
	}
	return result, nil
}

// ViolationTemplate builds an empty import workbook with the expected
// header and one example row.
func (s *ImportService) ViolationTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, name := range violationColumns {
		col, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, col, name); err != nil {
			return nil, fmt.Errorf("write template header: %w", err)
		}
	}
	example := []interface{}{"34 TOAN - 001035", "Late for class", 2, time.Now().Format(importDateLayouts[0])}
	for i, value := range example {
		col, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheet, col, value); err != nil {
			return nil, fmt.Errorf("write template example: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ImportService) sheetRows(workbook []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not open workbook")
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read sheet")
	}
	return rows, nil
}

func normalizeHeader(row []string) []string {
	out := make([]string, len(row))
	for i, name := range row {
		out[i] = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
	}
	return out
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseImportDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range importDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
