package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
)

func workbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, value := range row {
			cellName, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cellName, value))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestImportViolationsContinuesPastBadRows(t *testing.T) {
	ledger, students, conduct, _, _, mock := newLedgerFixture(t)
	students.add("s1", "34 TOAN - 001001", "An", "10A", 100)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewImportService(ledger, nil, 0, nil)
	workbook := workbookBytes(t, [][]interface{}{
		{"Student Code", "Violation Type", "Points", "Date"},
		{"34 TOAN - 001001", "Late for class", "2", "05/01/2026"},
		{"34 TOAN - 001001", "Fighting", "abc", ""},
		{},
		{"34 TOAN - 001999", "Late for class", "3", ""},
	})

	result, err := svc.ImportViolations(context.Background(), nil, nil, workbook, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `invalid points "abc"`)
	assert.Contains(t, result.Errors[0], "row 3")
	assert.Contains(t, result.Errors[1], `unknown student code "34 TOAN - 001999"`)

	require.Len(t, conduct.inserted, 1)
	assert.Equal(t, 2, conduct.inserted[0].WeekNumber)
	assert.Equal(t, 98.0, students.scores["s1"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportViolationsRespectsClassScope(t *testing.T) {
	ledger, students, conduct, _, _, mock := newLedgerFixture(t)
	students.add("s1", "34 TOAN - 001001", "An", "10A", 100)
	students.add("s2", "34 TOAN - 001002", "Binh", "10B", 100)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewImportService(ledger, nil, 0, nil)
	workbook := workbookBytes(t, [][]interface{}{
		{"student_code", "violation_type", "points"},
		{"34 TOAN - 001001", "Late for class", "2"},
		{"34 TOAN - 001002", "Late for class", "2"},
	})

	result, err := svc.ImportViolations(context.Background(), homeroomClaims("10A"), nil, workbook, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "outside your assigned scope")
	assert.Equal(t, 98.0, students.scores["s1"])
	assert.Equal(t, 100.0, students.scores["s2"])
	require.Len(t, conduct.inserted, 1)
}

func TestImportViolationsRequiresHeaderColumns(t *testing.T) {
	ledger, _, _, _, _, _ := newLedgerFixture(t)
	svc := NewImportService(ledger, nil, 0, nil)

	workbook := workbookBytes(t, [][]interface{}{
		{"student_code", "points"},
		{"34 TOAN - 001001", "2"},
	})

	_, err := svc.ImportViolations(context.Background(), nil, nil, workbook, 3)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, `"violation_type"`)
}

func TestImportRosterGeneratesCodesAndSkipsDuplicates(t *testing.T) {
	studentSvc, _, classes := newRosterFixture()
	svc := NewImportService(nil, studentSvc, 0, nil)

	workbook := workbookBytes(t, [][]interface{}{
		{"name", "class", "student_code"},
		{"Nguyễn Văn An", "10A", "34 TOAN - 001001"},
		{"Trần Thị Bích", "10A", "34 TOAN - 001001"},
		{"Phạm Văn Cường", "10B", ""},
		{"Hoàng Thị Dung", "", ""},
	})

	result, err := svc.ImportRoster(context.Background(), adminClaims(), workbook, "34")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "row 5")

	generated, err := studentSvc.FindByAnyCode(context.Background(), "34 B - 001001")
	require.NoError(t, err)
	require.NotNil(t, generated)
	assert.Equal(t, "Phạm Văn Cường", generated.Name)
	assert.Equal(t, []string{"10A", "10B"}, classes.created)
}

func TestViolationTemplateCarriesExpectedHeader(t *testing.T) {
	svc := NewImportService(nil, nil, 0, nil)

	template, err := svc.ViolationTemplate()
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(template))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"student_code", "violation_type", "points", "date"}, rows[0])
	assert.Equal(t, "34 TOAN - 001035", rows[1][0])
}
