package database

import (
	"encoding/json"
	"fmt"
	"time"
)

const questionColumns = "id, title, description, difficulty, category, tags, examples, constraints, test_cases, hints, points, time_limit, created_at, updated_at"

func (db *PgCodePrepRepository) CreateAccount(params CreateAccountParams) (User, error) {
	role := params.Role
	if role == "" {
		role = "user"
	}

	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, role, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, username, email, role",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		role,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.Role,
	)

	return u, err
}

func (db *PgCodePrepRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	// an empty hash means the caller is not changing the password
	res := db.conn.QueryRow(
		"UPDATE accounts SET username = $2, password_hash = COALESCE(NULLIF($3, ''), password_hash), updated_at = $4 "+
			"WHERE id = $1 RETURNING id, username, email, role, created_at, updated_at",
		params.UserId,
		params.Username,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgCodePrepRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, role, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgCodePrepRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, role, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgCodePrepRepository) ListAccounts(params ListAccountsParams) ([]User, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT id, username, email, role, created_at, updated_at FROM accounts "+
			"ORDER BY id LIMIT $1 OFFSET $2",
		limit,
		params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0, limit)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}

		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *PgCodePrepRepository) UpdateAccountRole(accountId int, role string) (User, error) {
	res := db.conn.QueryRow(
		"UPDATE accounts SET role = $2, updated_at = $3 "+
			"WHERE id = $1 RETURNING id, username, email, role, created_at, updated_at",
		accountId,
		role,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgCodePrepRepository) GetPlatformStats() (PlatformStats, error) {
	row := db.conn.QueryRow(
		"SELECT (SELECT COUNT(*) FROM accounts), " +
			"(SELECT COUNT(*) FROM questions), " +
			"(SELECT COUNT(*) FROM progress), " +
			"(SELECT COUNT(*) FROM progress WHERE status = 'solved')",
	)

	var stats PlatformStats
	err := row.Scan(
		&stats.TotalAccounts,
		&stats.TotalQuestions,
		&stats.TotalSubmissions,
		&stats.TotalSolved,
	)

	return stats, err
}

func (db *PgCodePrepRepository) CreateQuestion(params CreateQuestionParams) (Question, error) {
	docs, err := marshalQuestionDocs(params.Tags, params.Examples, params.Constraints, params.TestCases, params.Hints)
	if err != nil {
		return Question{}, err
	}

	row := db.conn.QueryRow(
		"INSERT INTO questions (title, description, difficulty, category, tags, examples, constraints, test_cases, hints, points, time_limit, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12) RETURNING "+questionColumns,
		params.Title,
		params.Description,
		params.Difficulty,
		params.Category,
		docs[0],
		docs[1],
		docs[2],
		docs[3],
		docs[4],
		params.Points,
		params.TimeLimit,
		time.Now().UTC(),
	)

	return scanQuestion(row)
}

func (db *PgCodePrepRepository) UpdateQuestion(params UpdateQuestionParams) (Question, error) {
	docs, err := marshalQuestionDocs(params.Tags, params.Examples, params.Constraints, params.TestCases, params.Hints)
	if err != nil {
		return Question{}, err
	}

	row := db.conn.QueryRow(
		"UPDATE questions SET title = $2, description = $3, difficulty = $4, category = $5, tags = $6, "+
			"examples = $7, constraints = $8, test_cases = $9, hints = $10, points = $11, time_limit = $12, updated_at = $13 "+
			"WHERE id = $1 RETURNING "+questionColumns,
		params.QuestionId,
		params.Title,
		params.Description,
		params.Difficulty,
		params.Category,
		docs[0],
		docs[1],
		docs[2],
		docs[3],
		docs[4],
		params.Points,
		params.TimeLimit,
		time.Now().UTC(),
	)

	return scanQuestion(row)
}

func (db *PgCodePrepRepository) DeleteQuestion(questionId int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec("DELETE FROM progress WHERE question_id = $1", questionId)
	if err != nil {
		return err
	}

	_, err = tx.Exec("DELETE FROM questions WHERE id = $1", questionId)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgCodePrepRepository) GetQuestionById(questionId int) (Question, error) {
	row := db.conn.QueryRow(
		"SELECT "+questionColumns+" FROM questions WHERE id = $1 LIMIT 1",
		questionId,
	)

	return scanQuestion(row)
}

func (db *PgCodePrepRepository) GetRandomQuestion(difficulty, category string) (Question, error) {
	row := db.conn.QueryRow(
		"SELECT "+questionColumns+" FROM questions "+
			"WHERE ($1 = '' OR difficulty = $1) AND ($2 = '' OR category = $2) "+
			"ORDER BY random() LIMIT 1",
		difficulty,
		category,
	)

	return scanQuestion(row)
}

func (db *PgCodePrepRepository) ListQuestions(params ListQuestionsParams) ([]Question, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(
		"SELECT "+questionColumns+" FROM questions "+
			"WHERE ($1 = '' OR difficulty = $1) AND ($2 = '' OR category = $2) "+
			"ORDER BY id LIMIT $3 OFFSET $4",
		params.Difficulty,
		params.Category,
		limit,
		params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions = make([]Question, 0, limit)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}

		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (db *PgCodePrepRepository) CreateProgress(params CreateProgressParams) (Progress, error) {
	res := db.conn.QueryRow(
		"INSERT INTO progress (account_id, question_id, status, attempts, time_spent, score, language, solution, completed_at) "+
			"VALUES ($1, $2, $3, (SELECT COUNT(*) + 1 FROM progress WHERE account_id = $1 AND question_id = $2), $4, $5, $6, $7, $8) "+
			"RETURNING id, account_id, question_id, status, attempts, time_spent, score, language, completed_at",
		params.AccountId,
		params.QuestionId,
		params.Status,
		params.TimeSpent,
		params.Score,
		params.Language,
		params.Solution,
		time.Now().UTC(),
	)

	var p Progress
	err := res.Scan(
		&p.Id,
		&p.AccountId,
		&p.QuestionId,
		&p.Status,
		&p.Attempts,
		&p.TimeSpent,
		&p.Score,
		&p.Language,
		&p.CompletedAt,
	)

	return p, err
}

func (db *PgCodePrepRepository) ListProgress(accountId int) ([]Progress, error) {
	rows, err := db.conn.Query(
		"SELECT id, account_id, question_id, status, attempts, time_spent, score, language, completed_at "+
			"FROM progress WHERE account_id = $1 ORDER BY completed_at DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress = make([]Progress, 0)
	for rows.Next() {
		var p Progress
		if err = rows.Scan(&p.Id, &p.AccountId, &p.QuestionId, &p.Status, &p.Attempts, &p.TimeSpent, &p.Score, &p.Language, &p.CompletedAt); err != nil {
			return nil, err
		}

		progress = append(progress, p)
	}
	return progress, rows.Err()
}

func (db *PgCodePrepRepository) ListProgressByQuestion(accountId, questionId int) ([]Progress, error) {
	rows, err := db.conn.Query(
		"SELECT id, account_id, question_id, status, attempts, time_spent, score, language, completed_at "+
			"FROM progress WHERE account_id = $1 AND question_id = $2 ORDER BY completed_at DESC",
		accountId,
		questionId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress = make([]Progress, 0)
	for rows.Next() {
		var p Progress
		if err = rows.Scan(&p.Id, &p.AccountId, &p.QuestionId, &p.Status, &p.Attempts, &p.TimeSpent, &p.Score, &p.Language, &p.CompletedAt); err != nil {
			return nil, err
		}

		progress = append(progress, p)
	}
	return progress, rows.Err()
}

func (db *PgCodePrepRepository) GetProgressSummary(accountId int) (ProgressSummary, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*), "+
			"COUNT(*) FILTER (WHERE status = 'solved'), "+
			"COUNT(*) FILTER (WHERE status = 'failed'), "+
			"COALESCE(AVG(score), 0) "+
			"FROM progress WHERE account_id = $1",
		accountId,
	)

	var summary ProgressSummary
	err := row.Scan(
		&summary.TotalAttempted,
		&summary.TotalSolved,
		&summary.TotalFailed,
		&summary.AverageScore,
	)
	if err != nil {
		return ProgressSummary{}, err
	}

	rows, err := db.conn.Query(
		"SELECT DISTINCT date_trunc('day', completed_at) AS day FROM progress "+
			"WHERE account_id = $1 ORDER BY day DESC LIMIT 365",
		accountId,
	)
	if err != nil {
		return ProgressSummary{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var day time.Time
		if err = rows.Scan(&day); err != nil {
			return ProgressSummary{}, err
		}

		summary.ActiveDays = append(summary.ActiveDays, day)
	}

	return summary, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row scanner) (Question, error) {
	var (
		q           Question
		tags        []byte
		examples    []byte
		constraints []byte
		testCases   []byte
		hints       []byte
	)

	err := row.Scan(
		&q.Id,
		&q.Title,
		&q.Description,
		&q.Difficulty,
		&q.Category,
		&tags,
		&examples,
		&constraints,
		&testCases,
		&hints,
		&q.Points,
		&q.TimeLimit,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return Question{}, err
	}

	for _, doc := range []struct {
		raw []byte
		dst any
	}{
		{tags, &q.Tags},
		{examples, &q.Examples},
		{constraints, &q.Constraints},
		{testCases, &q.TestCases},
		{hints, &q.Hints},
	} {
		if len(doc.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(doc.raw, doc.dst); err != nil {
			return Question{}, fmt.Errorf("unmarshal question document: %w", err)
		}
	}

	return q, nil
}

// marshalQuestionDocs serializes the jsonb columns in insert order: tags,
// examples, constraints, test cases, hints.
func marshalQuestionDocs(tags []string, examples []Example, constraints []string, testCases []TestCase, hints []string) ([5][]byte, error) {
	var docs [5][]byte
	for i, v := range []any{tags, examples, constraints, testCases, hints} {
		raw, err := json.Marshal(v)
		if err != nil {
			return docs, fmt.Errorf("marshal question document: %w", err)
		}
		docs[i] = raw
	}
	return docs, nil
}
