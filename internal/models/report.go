package models

// ScoreHistogram buckets students by conduct score: good (>=90),
// fair (70..89), poor (<70).
type ScoreHistogram struct {
	Good int `json:"good"`
	Fair int `json:"fair"`
	Poor int `json:"poor"`
}

// ClassRanking is one row of the weekly class leaderboard. AvgScore applies
// the fixed 15.0 amplification to the per-student average deduction.
type ClassRanking struct {
	ClassName    string  `json:"class_name"`
	WeeklyDeduct float64 `json:"weekly_deduct"`
	AvgScore     float64 `json:"avg_score"`
}

// ScorePoint is one step of a student's intra-week score trajectory.
type ScorePoint struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// WeeklyReport bundles the read-side summary for one week.
type WeeklyReport struct {
	WeekNumber  int                  `json:"week_number"`
	SystemWeek  int                  `json:"system_week"`
	TotalErrors int                  `json:"total_errors"`
	TotalPoints float64              `json:"total_points"`
	Rankings    []ClassRanking       `json:"rankings"`
	Violations  []ConductEvent       `json:"violations"`
	TopTypes    []ViolationTypeCount `json:"top_types"`
}

// WeekStats is the per-week roll-up fed to the AI trend analysis.
type WeekStats struct {
	WeekNumber    int                  `json:"week_number"`
	TotalStudents int                  `json:"total_students"`
	AvgScore      float64              `json:"avg_score"`
	GoodCount     int                  `json:"good_count"`
	PoorCount     int                  `json:"poor_count"`
	TopViolations []ViolationTypeCount `json:"top_violations"`
}
