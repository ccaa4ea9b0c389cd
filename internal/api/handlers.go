package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/codeprep-io/codeprep/internal/database"
	"github.com/codeprep-io/codeprep/internal/execution"
	"github.com/codeprep-io/codeprep/internal/types"
	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"
)

var validDifficulties = []string{"easy", "medium", "hard"}

func (s *CodePrepApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *CodePrepApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check failed:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type QuestionRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Difficulty  string           `json:"difficulty"`
	Category    string           `json:"category"`
	Tags        []string         `json:"tags,omitempty"`
	Examples    []types.Example  `json:"examples,omitempty"`
	Constraints []string         `json:"constraints,omitempty"`
	TestCases   []types.TestCase `json:"test_cases,omitempty"`
	Hints       []string         `json:"hints,omitempty"`
	Points      int              `json:"points"`
	TimeLimit   int              `json:"time_limit"`
}

func (q *QuestionRequest) validate() bool {
	return q.Title != "" && q.Description != "" && q.Category != "" &&
		slices.Contains(validDifficulties, q.Difficulty)
}

func (s *CodePrepApp) listQuestions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	questions, err := s.db.ListQuestions(database.ListQuestionsParams{
		Difficulty: query.Get("difficulty"),
		Category:   query.Get("category"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]types.Question, len(questions))
	for i, q := range questions {
		resp[i] = toApiQuestion(q)
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *CodePrepApp) getQuestion(w http.ResponseWriter, r *http.Request) {
	questionId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	question, err := s.db.GetQuestionById(questionId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toApiQuestion(question))
}

// randomQuestion picks a practice question at random, optionally narrowed
// by difficulty and category.
func (s *CodePrepApp) randomQuestion(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	question, err := s.db.GetRandomQuestion(query.Get("difficulty"), query.Get("category"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toApiQuestion(question))
}

func (s *CodePrepApp) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.validate() {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	question, err := s.db.CreateQuestion(database.CreateQuestionParams{
		Title:       req.Title,
		Description: req.Description,
		Difficulty:  req.Difficulty,
		Category:    req.Category,
		Tags:        req.Tags,
		Examples:    toDbExamples(req.Examples),
		Constraints: req.Constraints,
		TestCases:   toDbTestCases(req.TestCases),
		Hints:       req.Hints,
		Points:      req.Points,
		TimeLimit:   req.TimeLimit,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, toApiQuestion(question))
}

func (s *CodePrepApp) updateQuestion(w http.ResponseWriter, r *http.Request) {
	questionId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.validate() {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	question, err := s.db.UpdateQuestion(database.UpdateQuestionParams{
		QuestionId:  questionId,
		Title:       req.Title,
		Description: req.Description,
		Difficulty:  req.Difficulty,
		Category:    req.Category,
		Tags:        req.Tags,
		Examples:    toDbExamples(req.Examples),
		Constraints: req.Constraints,
		TestCases:   toDbTestCases(req.TestCases),
		Hints:       req.Hints,
		Points:      req.Points,
		TimeLimit:   req.TimeLimit,
	})
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toApiQuestion(question))
}

func (s *CodePrepApp) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	questionId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteQuestion(questionId); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type SubmitProgressRequest struct {
	QuestionId int    `json:"question_id"`
	Status     string `json:"status,omitempty"`
	TimeSpent  int    `json:"time_spent"`
	Score      int    `json:"score,omitempty"`
	Language   string `json:"language,omitempty"`
	Code       string `json:"code,omitempty"`
}

// submitProgress records an attempt. When a runner is configured and code
// was submitted, the verdict and score come from executing the question's
// test cases; otherwise the client-reported status stands.
func (s *CodePrepApp) submitProgress(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SubmitProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionId <= 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	status := req.Status
	score := req.Score

	if s.runner != nil && req.Code != "" {
		question, err := s.db.GetQuestionById(req.QuestionId)
		if err != nil {
			var errResp *ApiError
			if errors.Is(err, sql.ErrNoRows) {
				errResp = NewNotFoundError()
			} else {
				errResp = NewInternalServerError(err)
			}
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		cases := make([]execution.TestCase, len(question.TestCases))
		for i, tc := range question.TestCases {
			cases[i] = execution.TestCase{Input: tc.Input, ExpectedOutput: tc.ExpectedOutput}
		}

		result, err := s.runner.Run(r.Context(), execution.Submission{
			Language:  req.Language,
			Code:      req.Code,
			TestCases: cases,
		})
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		status = result.Status
		if result.Total > 0 {
			score = 100 * result.Passed / result.Total
		}
	}

	if !slices.Contains([]string{"attempted", "solved", "failed"}, status) {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	progress, err := s.db.CreateProgress(database.CreateProgressParams{
		AccountId:  userId,
		QuestionId: req.QuestionId,
		Status:     status,
		TimeSpent:  req.TimeSpent,
		Score:      score,
		Language:   req.Language,
		Solution:   req.Code,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, toApiProgress(progress))
}

type ProgressResponse struct {
	Summary types.ProgressSummary `json:"summary"`
	Recent  []types.Progress      `json:"recent"`
}

func (s *CodePrepApp) getProgress(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	summary, err := s.db.GetProgressSummary(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	recent, err := s.db.ListProgress(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := ProgressResponse{
		Summary: types.ProgressSummary{
			TotalAttempted: summary.TotalAttempted,
			TotalSolved:    summary.TotalSolved,
			TotalFailed:    summary.TotalFailed,
			AverageScore:   summary.AverageScore,
			Streak:         computeStreak(summary.ActiveDays, time.Now().UTC()),
		},
		Recent: make([]types.Progress, len(recent)),
	}
	for i, p := range recent {
		resp.Recent[i] = toApiProgress(p)
	}

	s.writeJson(w, http.StatusOK, resp)
}

// questionProgress lists the caller's attempts at one question, most
// recent first.
func (s *CodePrepApp) questionProgress(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	questionId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	attempts, err := s.db.ListProgressByQuestion(userId, questionId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]types.Progress, len(attempts))
	for i, p := range attempts {
		resp[i] = toApiProgress(p)
	}

	s.writeJson(w, http.StatusOK, resp)
}

type CreateRoomResponse struct {
	RoomId string `json:"room_id"`
}

// createRoom mints a shareable room id. Rooms themselves come into being
// on first join over the collaboration socket.
func (s *CodePrepApp) createRoom(w http.ResponseWriter, _ *http.Request) {
	roomId, err := shortid.Generate()
	if err != nil {
		s.log.Println("shortid generate:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, CreateRoomResponse{RoomId: roomId})
}

type NotifyRequest struct {
	Message string `json:"message"`
}

func (s *CodePrepApp) notify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.cs.SystemNotification(req.Message)
	w.WriteHeader(http.StatusAccepted)
}

func (s *CodePrepApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	s.cs.HandleConnection(conn, r.URL.Query().Get("token"))
}

// computeStreak counts consecutive active days ending today or yesterday.
// days must be distinct day-truncated timestamps in descending order.
func computeStreak(days []time.Time, now time.Time) int {
	if len(days) == 0 {
		return 0
	}

	today := now.Truncate(24 * time.Hour)
	expected := today
	if !days[0].Equal(today) {
		expected = today.AddDate(0, 0, -1)
	}

	streak := 0
	for _, day := range days {
		if !day.Equal(expected) {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}

	return streak
}

func toApiQuestion(q database.Question) types.Question {
	apiQ := types.Question{
		Id:          q.Id,
		Title:       q.Title,
		Description: q.Description,
		Difficulty:  q.Difficulty,
		Category:    q.Category,
		Tags:        q.Tags,
		Constraints: q.Constraints,
		Hints:       q.Hints,
		Points:      q.Points,
		TimeLimit:   q.TimeLimit,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}

	for _, e := range q.Examples {
		apiQ.Examples = append(apiQ.Examples, types.Example(e))
	}
	for _, tc := range q.TestCases {
		apiQ.TestCases = append(apiQ.TestCases, types.TestCase(tc))
	}

	return apiQ
}

func toDbExamples(examples []types.Example) []database.Example {
	dbExamples := make([]database.Example, len(examples))
	for i, e := range examples {
		dbExamples[i] = database.Example(e)
	}
	return dbExamples
}

func toDbTestCases(testCases []types.TestCase) []database.TestCase {
	dbTestCases := make([]database.TestCase, len(testCases))
	for i, tc := range testCases {
		dbTestCases[i] = database.TestCase(tc)
	}
	return dbTestCases
}

func toApiProgress(p database.Progress) types.Progress {
	return types.Progress{
		Id:          p.Id,
		QuestionId:  p.QuestionId,
		Status:      p.Status,
		Attempts:    p.Attempts,
		TimeSpent:   p.TimeSpent,
		Score:       p.Score,
		Language:    p.Language,
		CompletedAt: p.CompletedAt,
	}
}
