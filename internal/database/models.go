package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
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
	Id          int
	Title       string
	Description string
	Difficulty  string
	Category    string
	Tags        []string
	Examples    []Example
	Constraints []string
	TestCases   []TestCase
	Hints       []string
	Points      int
	TimeLimit   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Progress struct {
	Id          int
	AccountId   int
	QuestionId  int
	Status      string
	Attempts    int
	TimeSpent   int
	Score       int
	Language    string
	Solution    string
	CompletedAt time.Time
}

type ProgressSummary struct {
	TotalAttempted int
	TotalSolved    int
	TotalFailed    int
	AverageScore   float64
	ActiveDays     []time.Time
}

type PlatformStats struct {
	TotalAccounts    int
	TotalQuestions   int
	TotalSubmissions int
	TotalSolved      int
}

type ListAccountsParams struct {
	Limit  int
	Offset int
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
	Role         string
}

type UpdateAccountParams struct {
	UserId       int
	Username     string
	PasswordHash string
}

type CreateQuestionParams struct {
	Title       string
	Description string
	Difficulty  string
	Category    string
	Tags        []string
	Examples    []Example
	Constraints []string
	TestCases   []TestCase
	Hints       []string
	Points      int
	TimeLimit   int
}

type UpdateQuestionParams struct {
	QuestionId  int
	Title       string
	Description string
	Difficulty  string
	Category    string
	Tags        []string
	Examples    []Example
	Constraints []string
	TestCases   []TestCase
	Hints       []string
	Points      int
	TimeLimit   int
}

type ListQuestionsParams struct {
	Difficulty string
	Category   string
	Limit      int
	Offset     int
}

type CreateProgressParams struct {
	AccountId  int
	QuestionId int
	Status     string
	TimeSpent  int
	Score      int
	Language   string
	Solution   string
}
