package database

import (
	"github.com/stretchr/testify/mock"
)

type MockCodePrepRepository struct {
	mock.Mock
}

func (m *MockCodePrepRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockCodePrepRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockCodePrepRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockCodePrepRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockCodePrepRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockCodePrepRepository) ListAccounts(params ListAccountsParams) ([]User, error) {
	args := m.Called(params)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockCodePrepRepository) UpdateAccountRole(accountId int, role string) (User, error) {
	args := m.Called(accountId, role)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockCodePrepRepository) GetPlatformStats() (PlatformStats, error) {
	args := m.Called()
	return args.Get(0).(PlatformStats), args.Error(1)
}
func (m *MockCodePrepRepository) CreateQuestion(params CreateQuestionParams) (Question, error) {
	args := m.Called(params)
	return args.Get(0).(Question), args.Error(1)
}
func (m *MockCodePrepRepository) UpdateQuestion(params UpdateQuestionParams) (Question, error) {
	args := m.Called(params)
	return args.Get(0).(Question), args.Error(1)
}
func (m *MockCodePrepRepository) DeleteQuestion(questionId int) error {
	args := m.Called(questionId)
	return args.Error(0)
}
func (m *MockCodePrepRepository) GetQuestionById(questionId int) (Question, error) {
	args := m.Called(questionId)
	return args.Get(0).(Question), args.Error(1)
}
func (m *MockCodePrepRepository) GetRandomQuestion(difficulty, category string) (Question, error) {
	args := m.Called(difficulty, category)
	return args.Get(0).(Question), args.Error(1)
}
func (m *MockCodePrepRepository) ListQuestions(params ListQuestionsParams) ([]Question, error) {
	args := m.Called(params)
	return args.Get(0).([]Question), args.Error(1)
}
func (m *MockCodePrepRepository) CreateProgress(params CreateProgressParams) (Progress, error) {
	args := m.Called(params)
	return args.Get(0).(Progress), args.Error(1)
}
func (m *MockCodePrepRepository) ListProgress(accountId int) ([]Progress, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Progress), args.Error(1)
}
func (m *MockCodePrepRepository) ListProgressByQuestion(accountId, questionId int) ([]Progress, error) {
	args := m.Called(accountId, questionId)
	return args.Get(0).([]Progress), args.Error(1)
}
func (m *MockCodePrepRepository) GetProgressSummary(accountId int) (ProgressSummary, error) {
	args := m.Called(accountId)
	return args.Get(0).(ProgressSummary), args.Error(1)
}
