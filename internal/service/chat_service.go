package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/homeroom-api/internal/models"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/llm"
)

type chatTranscriptRepo interface {
	History(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
	Insert(ctx context.Context, msg *models.ChatMessage) error
}

type chatConductRepo interface {
	List(ctx context.Context, filter models.ConductEventFilter) ([]models.ConductEvent, error)
	TypeCounts(ctx context.Context, studentID string) ([]models.ViolationTypeCount, error)
}

// ChatService is the advisory facade: it grounds a question with ledger and
// grade data, calls the local model, and falls back to rendering the raw
// data when the model is unreachable. It never touches ledger state.
type ChatService struct {
	llm          llm.Client
	transcripts  chatTranscriptRepo
	students     *StudentService
	conduct      chatConductRepo
	reports      *ReportService
	grades       *GradeService
	access       *AccessService
	historyLimit int
	logger       *zap.Logger
}

// NewChatService constructs the service.
func NewChatService(client llm.Client, transcripts chatTranscriptRepo, students *StudentService, conduct chatConductRepo, reports *ReportService, grades *GradeService, access *AccessService, historyLimit int, logger *zap.Logger) *ChatService {
	if access == nil {
		access = NewAccessService()
	}
	if historyLimit <= 0 {
		historyLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		llm:          client,
		transcripts:  transcripts,
		students:     students,
		conduct:      conduct,
		reports:      reports,
		grades:       grades,
		access:       access,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// ChatReply is the facade's answer to one question.
type ChatReply struct {
	SessionID string              `json:"session_id"`
	Message   string              `json:"message"`
	Fallback  bool                `json:"fallback"`
	Buttons   []models.ChatButton `json:"buttons,omitempty"`
}

// AskRequest carries one chat turn.
type AskRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" validate:"required"`
}

// Ask answers a free-text question. The prompt carries the last turns of
// the session plus any student data resolved from the message text. Model
// failure degrades to a fixed rendering of that same data.
func (s *ChatService) Ask(ctx context.Context, claims *models.JWTClaims, req AskRequest) (*ChatReply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message must not be empty")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	student, matches, err := s.resolveStudent(ctx, claims, req.Message)
	if err != nil {
		return nil, err
	}
	if len(matches) > 1 {
		// Ambiguous mention: let the caller pick instead of guessing.
		reply := &ChatReply{SessionID: sessionID, Message: "Several students match that name, please pick one:"}
		for _, m := range matches {
			reply.Buttons = append(reply.Buttons, models.ChatButton{
				Label:   fmt.Sprintf("%s (%s, %s)", m.Name, m.StudentCode, m.StudentClass),
				Payload: m.ID,
			})
		}
		s.record(ctx, sessionID, claims, models.ChatRoleUser, req.Message, nil)
		s.record(ctx, sessionID, claims, models.ChatRoleAssistant, reply.Message, nil)
		return reply, nil
	}

	var contextBlock string
	if student != nil {
		contextBlock, err = s.studentContext(ctx, claims, student)
		if err != nil {
			s.logger.Warn("student context build failed", zap.Error(err))
		}
	}

	history, err := s.transcripts.History(ctx, sessionID, s.historyLimit)
	if err != nil {
		s.logger.Warn("chat history load failed", zap.Error(err))
	}

	prompt := s.buildPrompt(req.Message, contextBlock, history)
	s.record(ctx, sessionID, claims, models.ChatRoleUser, req.Message, nil)

	result, err := s.llm.Complete(ctx, llm.CompletionRequest{Prompt: prompt})
	if err != nil {
		s.logger.Warn("llm completion failed, falling back", zap.Error(err))
		fallback := s.fallbackText(student, contextBlock)
		s.record(ctx, sessionID, claims, models.ChatRoleAssistant, fallback, &contextBlock)
		return &ChatReply{SessionID: sessionID, Message: fallback, Fallback: true}, nil
	}

	s.record(ctx, sessionID, claims, models.ChatRoleAssistant, result.Text, &contextBlock)
	return &ChatReply{SessionID: sessionID, Message: result.Text}, nil
}

// ParentReport drafts a conduct-and-grades summary addressed to a student's
// parents.
func (s *ChatService) ParentReport(ctx context.Context, claims *models.JWTClaims, studentID string, semester int, schoolYear string) (*ChatReply, error) {
	student, err := s.students.Get(ctx, claims, studentID)
	if err != nil {
		return nil, err
	}
	contextBlock, err := s.studentContext(ctx, claims, student)
	if err != nil {
		return nil, err
	}
	if schoolYear != "" {
		if transcript, err := s.grades.Transcript(ctx, claims, studentID, semester, schoolYear); err == nil {
			contextBlock += renderTranscript(transcript)
		}
	}

	prompt := fmt.Sprintf(`You are a homeroom teacher writing a short report to the parents of student %s.
Use only the data below. Be factual, polite and encouraging. Write in plain prose.

%s`, student.Name, contextBlock)

	result, err := s.llm.Complete(ctx, llm.CompletionRequest{Prompt: prompt})
	if err != nil {
		s.logger.Warn("llm completion failed, falling back", zap.Error(err))
		return &ChatReply{Message: s.fallbackText(student, contextBlock), Fallback: true}, nil
	}
	return &ChatReply{Message: result.Text}, nil
}

// ClassTrends summarises several weeks of class statistics.
func (s *ChatService) ClassTrends(ctx context.Context, class string, weeks []int) (*ChatReply, error) {
	if len(weeks) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one week is required")
	}
	var sb strings.Builder
	for _, week := range weeks {
		stats, err := s.reports.WeekStats(ctx, week, class)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "Week %d: %d students, average score %.2f, %d good (>=90), %d poor (<70).\n",
			stats.WeekNumber, stats.TotalStudents, stats.AvgScore, stats.GoodCount, stats.PoorCount)
		for _, t := range stats.TopViolations {
			fmt.Fprintf(&sb, "  - %s: %d times\n", t.TypeName, t.Count)
		}
	}
	data := sb.String()

	prompt := fmt.Sprintf(`You are advising a homeroom teacher. Summarise the conduct trend across these weeks
and suggest one concrete action. Use only the data below.

%s`, data)

	result, err := s.llm.Complete(ctx, llm.CompletionRequest{Prompt: prompt})
	if err != nil {
		s.logger.Warn("llm completion failed, falling back", zap.Error(err))
		return &ChatReply{Message: "Weekly statistics:\n" + data, Fallback: true}, nil
	}
	return &ChatReply{Message: result.Text}, nil
}

// ReadStudentCodes asks the vision model to read student codes off an image
// and resolves each one against the roster, exact first then normalized.
// Unreadable or unmatched codes are dropped silently; OCR is best effort.
func (s *ChatService) ReadStudentCodes(ctx context.Context, image []byte) ([]models.Student, []string, error) {
	if len(image) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "image is required")
	}
	prompt := `Read every student code visible in this image.
Reply with JSON of the form {"codes": ["...", "..."]}. Codes look like "34 TOAN - 001035".`

	result, err := s.llm.Complete(ctx, llm.CompletionRequest{Prompt: prompt, Image: image, WantJSON: true})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrExternalService.Code, appErrors.ErrExternalService.Status, "vision model call failed")
	}

	raw, _ := result.JSON["codes"].([]interface{})
	var matched []models.Student
	var unmatched []string
	for _, item := range raw {
		code, ok := item.(string)
		if !ok || strings.TrimSpace(code) == "" {
			continue
		}
		student, err := s.students.FindByAnyCode(ctx, code)
		if err != nil {
			return nil, nil, err
		}
		if student == nil {
			unmatched = append(unmatched, code)
			continue
		}
		matched = append(matched, *student)
	}
	return matched, unmatched, nil
}

func (s *ChatService) resolveStudent(ctx context.Context, claims *models.JWTClaims, message string) (*models.Student, []models.Student, error) {
	words := strings.Fields(message)
	// Try the longest trailing fragments first so "điểm của Nguyễn Văn A"
	// resolves on the name, not the question words.
	for length := len(words); length >= 2; length-- {
		for start := 0; start+length <= len(words); start++ {
			fragment := strings.Join(words[start:start+length], " ")
			matches, err := s.students.SearchByName(ctx, fragment)
			if err != nil {
				return nil, nil, err
			}
			matches = s.readable(claims, matches)
			if len(matches) == 1 {
				return &matches[0], matches, nil
			}
			if len(matches) > 1 && len(matches) <= 5 {
				return nil, matches, nil
			}
		}
	}
	return nil, nil, nil
}

// readable drops students outside the caller's class scope so neither the
// grounding data nor the disambiguation list leaks another class's roster.
func (s *ChatService) readable(claims *models.JWTClaims, students []models.Student) []models.Student {
	if claims == nil {
		return students
	}
	var out []models.Student
	for i := range students {
		if s.access.CanAccessStudent(claims, &students[i]) {
			out = append(out, students[i])
		}
	}
	return out
}

func (s *ChatService) studentContext(ctx context.Context, claims *models.JWTClaims, student *models.Student) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Student: %s (code %s, class %s), current conduct score %.1f.\n",
		student.Name, student.StudentCode, student.StudentClass, student.Score())

	events, err := s.conduct.List(ctx, models.ConductEventFilter{StudentID: student.ID, Kind: models.EventViolation})
	if err != nil {
		return sb.String(), err
	}
	if len(events) > 0 {
		sb.WriteString("Recent violations:\n")
		limit := len(events)
		if limit > 10 {
			limit = 10
		}
		for _, e := range events[:limit] {
			fmt.Fprintf(&sb, "  - %s (%d points, week %d, %s)\n",
				e.TypeName, e.Points, e.WeekNumber, e.DateCommitted.Format("02/01/2006"))
		}
	}
	counts, err := s.conduct.TypeCounts(ctx, student.ID)
	if err != nil {
		return sb.String(), err
	}
	if len(counts) > 0 {
		sb.WriteString("Violation totals by type:\n")
		for _, c := range counts {
			fmt.Fprintf(&sb, "  - %s: %d\n", c.TypeName, c.Count)
		}
	}
	return sb.String(), nil
}

func (s *ChatService) buildPrompt(question, contextBlock string, history []models.ChatMessage) string {
	var sb strings.Builder
	sb.WriteString("You are an assistant for a homeroom teacher. Answer using only the data provided. Answer in the language of the question.\n\n")
	if contextBlock != "" {
		sb.WriteString("DATA:\n")
		sb.WriteString(contextBlock)
		sb.WriteString("\n")
	}
	if len(history) > 0 {
		sb.WriteString("CONVERSATION SO FAR:\n")
		for _, msg := range history {
			fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Message)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("QUESTION: ")
	sb.WriteString(question)
	return sb.String()
}

// fallbackText renders the grounding data directly when the model is down,
// so the teacher still gets an answer built from real numbers.
func (s *ChatService) fallbackText(student *models.Student, contextBlock string) string {
	if contextBlock != "" {
		return "The assistant is currently unavailable. Here is the raw data instead:\n\n" + contextBlock
	}
	if student != nil {
		return fmt.Sprintf("The assistant is currently unavailable. %s is in class %s with a conduct score of %.1f.",
			student.Name, student.StudentClass, student.Score())
	}
	return "The assistant is currently unavailable, please try again later."
}

func (s *ChatService) record(ctx context.Context, sessionID string, claims *models.JWTClaims, role models.ChatRole, message string, contextData *string) {
	msg := &models.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Message:   message,
	}
	if claims != nil {
		msg.TeacherID = claims.TeacherID
	}
	if contextData != nil && *contextData != "" {
		msg.ContextData = contextData
	}
	if err := s.transcripts.Insert(ctx, msg); err != nil {
		s.logger.Warn("chat transcript write failed", zap.Error(err))
	}
}

func renderTranscript(t *models.Transcript) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Grades for semester %d, year %s:\n", t.Semester, t.SchoolYear)
	for _, subject := range t.Subjects {
		if subject.Average != nil {
			fmt.Fprintf(&sb, "  - %s: average %.2f\n", subject.Subject.Name, *subject.Average)
		} else {
			fmt.Fprintf(&sb, "  - %s: incomplete scores\n", subject.Subject.Name)
		}
	}
	if t.GPA != nil {
		fmt.Fprintf(&sb, "Overall GPA: %.2f\n", *t.GPA)
	}
	return sb.String()
}
