package api

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codeprep-io/codeprep/internal/collab"
	"github.com/codeprep-io/codeprep/internal/config"
	"github.com/codeprep-io/codeprep/internal/database"
	"github.com/codeprep-io/codeprep/internal/execution"
	"github.com/codeprep-io/codeprep/internal/stats"
	"github.com/codeprep-io/codeprep/internal/testutil"
	"github.com/codeprep-io/codeprep/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestApp(t *testing.T, db database.CodePrepRepository, runner execution.Runner) *CodePrepApp {
	logger := testutil.TestLogger(t)

	sp := &stats.MockStatsUpdater{}
	sp.On("RegisterMetric", mock.Anything)
	sp.On("Incr", mock.Anything)
	sp.On("Decr", mock.Anything)

	secret := base64.StdEncoding.EncodeToString([]byte("test-signing-key"))
	cfg, err := config.NewConfig(":8080", "postgres://localhost/codeprep_test", secret,
		[]string{"http://localhost:3000"}, time.Minute, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	cs := collab.NewCollabServer(logger, NewTokenVerifier(cfg.SigningKey, db), sp, cfg.IdleTimeout, cfg.SweepInterval)

	return NewCodePrepApp(http.NewServeMux(), logger, cs, db, runner, sp, cfg)
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func Test_createAccount(t *testing.T) {
	tt := []struct {
		name           string
		body           string
		setupMock      func(db *database.MockCodePrepRepository)
		expectedStatus int
	}{
		{
			name:           "malformed body",
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing fields",
			body:           `{"email":"a@b.com"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "duplicate account",
			body: `{"email":"a@b.com","username":"alice","password":"secret"}`,
			setupMock: func(db *database.MockCodePrepRepository) {
				db.On("CreateAccount", mock.AnythingOfType("database.CreateAccountParams")).
					Return(database.User{}, sql.ErrConnDone)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "success",
			body: `{"email":"a@b.com","username":"alice","password":"secret"}`,
			setupMock: func(db *database.MockCodePrepRepository) {
				db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
					return p.Username == "alice" && p.EmailAddress == "a@b.com" &&
						verifyPassword(p.PasswordHash, "secret")
				})).Return(database.User{Id: 1, Username: "alice", EmailAddress: "a@b.com", Role: "user"}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockCodePrepRepository{}
			if tc.setupMock != nil {
				tc.setupMock(db)
			}
			app := newTestApp(t, db, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			app.createAccount(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			db.AssertExpectations(t)

			if tc.expectedStatus == http.StatusCreated {
				var user types.User
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
				assert.Equal(t, 1, user.Id)
				assert.Equal(t, "alice", user.Username)
			}
		})
	}
}

func Test_login(t *testing.T) {
	pwdHash, err := hashPassword("secret")
	if err != nil {
		t.Fatal(err)
	}

	tt := []struct {
		name           string
		body           string
		setupMock      func(db *database.MockCodePrepRepository)
		expectedStatus int
	}{
		{
			name:           "malformed body",
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown account",
			body: `{"email":"a@b.com","password":"secret"}`,
			setupMock: func(db *database.MockCodePrepRepository) {
				db.On("GetAccountByEmail", "a@b.com").Return(database.User{}, sql.ErrNoRows)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "wrong password",
			body: `{"email":"a@b.com","password":"nope"}`,
			setupMock: func(db *database.MockCodePrepRepository) {
				db.On("GetAccountByEmail", "a@b.com").
					Return(database.User{Id: 1, EmailAddress: "a@b.com", PasswordHash: pwdHash}, nil)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "success",
			body: `{"email":"a@b.com","password":"secret"}`,
			setupMock: func(db *database.MockCodePrepRepository) {
				db.On("GetAccountByEmail", "a@b.com").
					Return(database.User{Id: 1, Username: "alice", EmailAddress: "a@b.com", PasswordHash: pwdHash, Role: "user"}, nil)
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

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			app.login(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			db.AssertExpectations(t)

			if tc.expectedStatus != http.StatusOK {
				return
			}

			cookie := findCookie(rr.Result().Cookies(), tokenCookieKey)
			if assert.NotNil(t, cookie) {
				assert.NotEmpty(t, cookie.Value)
				assert.True(t, cookie.HttpOnly)
			}

			var resp LoginResponse
			assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, 1, resp.User.Id)
			assert.NotEmpty(t, resp.Token, "token must be in the body for socket clients")

			userId, err := parseUserId(app.signingKey, resp.Token)
			assert.NoError(t, err)
			assert.Equal(t, 1, userId)
		})
	}
}

func Test_logout(t *testing.T) {
	app := newTestApp(t, &database.MockCodePrepRepository{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	rr := httptest.NewRecorder()
	app.logout(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)

	cookie := findCookie(rr.Result().Cookies(), tokenCookieKey)
	if assert.NotNil(t, cookie) {
		assert.Empty(t, cookie.Value)
		assert.True(t, cookie.Expires.Before(time.Now().Add(-time.Minute)),
			"deletion cookie must expire in the past, not merely now")
	}
}

func Test_session(t *testing.T) {
	db := &database.MockCodePrepRepository{}
	db.On("GetAccountById", 1).Return(database.User{Id: 1, Username: "alice", Role: "user"}, nil)
	app := newTestApp(t, db, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req = req.WithContext(WithUserId(req.Context(), 1))
	rr := httptest.NewRecorder()
	app.session(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var user types.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
	assert.Equal(t, "alice", user.Username)
}

func Test_session_Unauthenticated(t *testing.T) {
	app := newTestApp(t, &database.MockCodePrepRepository{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	rr := httptest.NewRecorder()
	app.session(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func Test_account_Update(t *testing.T) {
	t.Run("username only keeps stored password", func(t *testing.T) {
		db := &database.MockCodePrepRepository{}
		db.On("UpdateAccount", mock.MatchedBy(func(p database.UpdateAccountParams) bool {
			// no password in the request, so no replacement hash may be sent
			return p.UserId == 1 && p.Username == "renamed" && p.PasswordHash == ""
		})).Return(database.User{Id: 1, Username: "renamed"}, nil)
		app := newTestApp(t, db, nil)

		req := httptest.NewRequest(http.MethodPut, "/api/account", strings.NewReader(`{"username":"renamed"}`))
		req = req.WithContext(WithUserId(req.Context(), 1))
		rr := httptest.NewRecorder()
		app.account(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		db.AssertExpectations(t)
	})

	t.Run("new password is hashed", func(t *testing.T) {
		db := &database.MockCodePrepRepository{}
		db.On("UpdateAccount", mock.MatchedBy(func(p database.UpdateAccountParams) bool {
			return p.UserId == 1 && verifyPassword(p.PasswordHash, "new-secret")
		})).Return(database.User{Id: 1, Username: "alice"}, nil)
		app := newTestApp(t, db, nil)

		req := httptest.NewRequest(http.MethodPut, "/api/account", strings.NewReader(`{"username":"alice","password":"new-secret"}`))
		req = req.WithContext(WithUserId(req.Context(), 1))
		rr := httptest.NewRecorder()
		app.account(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		db.AssertExpectations(t)
	})
}

func Test_parseUserId(t *testing.T) {
	app := newTestApp(t, &database.MockCodePrepRepository{}, nil)

	token, err := app.createToken(7, time.Hour)
	assert.NoError(t, err)

	userId, err := parseUserId(app.signingKey, token)
	assert.NoError(t, err)
	assert.Equal(t, 7, userId)

	_, err = parseUserId([]byte("wrong-key"), token)
	assert.Error(t, err)

	expired, err := app.createToken(7, -time.Hour)
	assert.NoError(t, err)
	_, err = parseUserId(app.signingKey, expired)
	assert.Error(t, err)

	_, err = parseUserId(app.signingKey, "not-a-token")
	assert.Error(t, err)
}

func TestTokenVerifier(t *testing.T) {
	app := newTestApp(t, &database.MockCodePrepRepository{}, nil)
	token, err := app.createToken(1, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("malformed token", func(t *testing.T) {
		v := NewTokenVerifier(app.signingKey, &database.MockCodePrepRepository{})
		_, err := v.Verify("garbage")
		assert.Error(t, err)
	})

	t.Run("unknown account", func(t *testing.T) {
		db := &database.MockCodePrepRepository{}
		db.On("GetAccountById", 1).Return(database.User{}, sql.ErrNoRows)
		v := NewTokenVerifier(app.signingKey, db)

		_, err := v.Verify(token)
		assert.ErrorIs(t, err, collab.ErrInvalidUser)
	})

	t.Run("success", func(t *testing.T) {
		db := &database.MockCodePrepRepository{}
		db.On("GetAccountById", 1).Return(database.User{Id: 1, Username: "alice", Role: "user"}, nil)
		v := NewTokenVerifier(app.signingKey, db)

		user, err := v.Verify(token)
		assert.NoError(t, err)
		assert.Equal(t, types.User{Id: 1, Username: "alice", Role: "user"}, user)
	})
}

func TestUserIdContext(t *testing.T) {
	_, ok := UserId(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)

	ctx := WithUserId(httptest.NewRequest(http.MethodGet, "/", nil).Context(), 42)
	userId, ok := UserId(ctx)
	assert.True(t, ok)
	assert.Equal(t, 42, userId)
}
