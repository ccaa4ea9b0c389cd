package execution

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, sub Submission) (Result, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(Result), args.Error(1)
}
