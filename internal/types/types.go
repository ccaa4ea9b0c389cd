package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Role         string    `json:"role,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Example struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation,omitempty"`
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden,omitempty"`
}

type Question struct {
	Id          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  string     `json:"difficulty"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags,omitempty"`
	Examples    []Example  `json:"examples,omitempty"`
	Constraints []string   `json:"constraints,omitempty"`
	TestCases   []TestCase `json:"test_cases,omitempty"`
	Hints       []string   `json:"hints,omitempty"`
	Points      int        `json:"points"`
	TimeLimit   int        `json:"time_limit"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
}

type Progress struct {
	Id          int       `json:"id"`
	QuestionId  int       `json:"question_id"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	TimeSpent   int       `json:"time_spent"`
	Score       int       `json:"score"`
	Language    string    `json:"language,omitempty"`
	Solution    string    `json:"solution,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

type PlatformStats struct {
	TotalAccounts    int `json:"total_accounts"`
	TotalQuestions   int `json:"total_questions"`
	TotalSubmissions int `json:"total_submissions"`
	TotalSolved      int `json:"total_solved"`
}

type ProgressSummary struct {
	TotalAttempted int     `json:"total_attempted"`
	TotalSolved    int     `json:"total_solved"`
	TotalFailed    int     `json:"total_failed"`
	AverageScore   float64 `json:"average_score"`
	Streak         int     `json:"streak"`
}
