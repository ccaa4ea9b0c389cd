package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/codeprep-io/codeprep/internal/database"
	"github.com/codeprep-io/codeprep/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_listAccounts(t *testing.T) {
	db := &database.MockCodePrepRepository{}
	db.On("ListAccounts", database.ListAccountsParams{Limit: 5, Offset: 10}).
		Return([]database.User{
			{Id: 1, Username: "alice", Role: "admin"},
			{Id: 2, Username: "bob", Role: "user"},
		}, nil)
	app := newTestApp(t, db, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users?limit=5&offset=10", nil)
	rr := httptest.NewRecorder()
	app.listAccounts(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	db.AssertExpectations(t)

	var users []types.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&users))
	if assert.Len(t, users, 2) {
		assert.Equal(t, "alice", users[0].Username)
		assert.Equal(t, "admin", users[0].Role)
	}
}

func Test_getAccount(t *testing.T) {
	tt := []struct {
		name           string
		id             string
		setupMock      func(db *database.MockCodePrepRepository)
		expectedStatus int
	}{
		{
			name:           "non-numeric id",
			id:             "abc",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "not found",
			id:   "99",
			setupMock: func(db *database.MockCodePrepRepository) {
				db.On("GetAccountById", 99).Return(database.User{}, sql.ErrNoRows)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "success",
			id:   "2",
			setupMock: func(db *database.MockCodePrepRepository) {
				db.On("GetAccountById", 2).Return(database.User{Id: 2, Username: "bob", Role: "user"}, nil)
				db.On("GetProgressSummary", 2).Return(database.ProgressSummary{
					TotalAttempted: 4,
					TotalSolved:    3,
					AverageScore:   82.5,
				}, nil)
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockCodePrepRepository{}
			if tc.setupMock != nil {
				tc.setupMock(db)
			}
			app := newTestApp(t, db, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/admin/users/"+tc.id, nil)
			req.SetPathValue("id", tc.id)
			rr := httptest.NewRecorder()
			app.getAccount(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			db.AssertExpectations(t)

			if tc.expectedStatus == http.StatusOK {
				var resp AccountDetailResponse
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, "bob", resp.User.Username)
				assert.Equal(t, 4, resp.Summary.TotalAttempted)
				assert.Equal(t, 3, resp.Summary.TotalSolved)
			}
		})
	}
}

func Test_updateAccountRole(t *testing.T) {
	tt := []struct {
		name           string
		id             string
		requesterId    int
		body           string
		setupMock      func(db *database.MockCodePrepRepository)
		expectedStatus int
	}{
		{
			name:           "non-numeric id",
			id:             "abc",
			requesterId:    1,
			body:           `{"role":"admin"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "own role",
			id:             "1",
			requesterId:    1,
			body:           `{"role":"user"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown role",
			id:             "2",
			requesterId:    1,
			body:           `{"role":"superuser"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "not found",
			id:          "99",
			requesterId: 1,
			body:        `{"role":"admin"}`,
			setupMock: func(db *database.MockCodePrepRepository) {
				db.On("UpdateAccountRole", 99, "admin").Return(database.User{}, sql.ErrNoRows)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:        "success",
			id:          "2",
			requesterId: 1,
			body:        `{"role":"admin"}`,
			setupMock: func(db *database.MockCodePrepRepository) {
				db.On("UpdateAccountRole", 2, "admin").Return(database.User{Id: 2, Username: "bob", Role: "admin"}, nil)
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockCodePrepRepository{}
			if tc.setupMock != nil {
				tc.setupMock(db)
			}
			app := newTestApp(t, db, nil)

			req := httptest.NewRequest(http.MethodPut, "/api/admin/users/"+tc.id+"/role", strings.NewReader(tc.body))
			req.SetPathValue("id", tc.id)
			req = req.WithContext(WithUserId(req.Context(), tc.requesterId))
			rr := httptest.NewRecorder()
			app.updateAccountRole(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			db.AssertExpectations(t)

			if tc.expectedStatus == http.StatusOK {
				var user types.User
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
				assert.Equal(t, "admin", user.Role)
			}
		})
	}
}

func Test_adminStats(t *testing.T) {
	db := &database.MockCodePrepRepository{}
	db.On("GetPlatformStats").Return(database.PlatformStats{
		TotalAccounts:    100,
		TotalQuestions:   40,
		TotalSubmissions: 900,
		TotalSolved:      600,
	}, nil)
	app := newTestApp(t, db, nil)

	rr := httptest.NewRecorder()
	app.adminStats(rr, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	db.AssertExpectations(t)

	var stats types.PlatformStats
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&stats))
	assert.Equal(t, 100, stats.TotalAccounts)
	assert.Equal(t, 600, stats.TotalSolved)
}
