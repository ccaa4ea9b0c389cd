package execution

import (
	"context"
)

// Result statuses reported by a Runner.
const (
	StatusSolved = "solved"
	StatusFailed = "failed"
)

type TestCase struct {
	Input          string
	ExpectedOutput string
}

type Submission struct {
	Language  string
	Code      string
	TestCases []TestCase
}

type Result struct {
	Status string
	Passed int
	Total  int
	Output string
}

// Runner executes a code submission against its test cases in a sandbox.
// The sandbox itself lives in a separate service; this is the seam the
// progress submission path consumes.
type Runner interface {
	Run(ctx context.Context, sub Submission) (Result, error)
}
