package database

type CodePrepRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	UpdateAccount(params UpdateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	ListAccounts(params ListAccountsParams) ([]User, error)
	UpdateAccountRole(accountId int, role string) (User, error)
	GetPlatformStats() (PlatformStats, error)
	CreateQuestion(params CreateQuestionParams) (Question, error)
	UpdateQuestion(params UpdateQuestionParams) (Question, error)
	DeleteQuestion(questionId int) error
	GetQuestionById(questionId int) (Question, error)
	GetRandomQuestion(difficulty, category string) (Question, error)
	ListQuestions(params ListQuestionsParams) ([]Question, error)
	CreateProgress(params CreateProgressParams) (Progress, error)
	ListProgress(accountId int) ([]Progress, error)
	ListProgressByQuestion(accountId, questionId int) ([]Progress, error)
	GetProgressSummary(accountId int) (ProgressSummary, error)
}
