package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/codeprep-io/codeprep/internal/database"
	"github.com/codeprep-io/codeprep/internal/types"
)

var validRoles = []string{"user", "admin"}

func (s *CodePrepApp) listAccounts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	users, err := s.db.ListAccounts(database.ListAccountsParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]types.User, len(users))
	for i, u := range users {
		resp[i] = toApiUser(u)
	}

	s.writeJson(w, http.StatusOK, resp)
}

type AccountDetailResponse struct {
	User    types.User            `json:"user"`
	Summary types.ProgressSummary `json:"summary"`
}

func (s *CodePrepApp) getAccount(w http.ResponseWriter, r *http.Request) {
	accountId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(accountId)
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

	summary, err := s.db.GetProgressSummary(accountId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, AccountDetailResponse{
		User: toApiUser(user),
		Summary: types.ProgressSummary{
			TotalAttempted: summary.TotalAttempted,
			TotalSolved:    summary.TotalSolved,
			TotalFailed:    summary.TotalFailed,
			AverageScore:   summary.AverageScore,
		},
	})
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

func (s *CodePrepApp) updateAccountRole(w http.ResponseWriter, r *http.Request) {
	accountId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// admins cannot change their own role, so a lone admin cannot lock
	// everyone out
	if requesterId, ok := UserId(r.Context()); ok && requesterId == accountId {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !slices.Contains(validRoles, req.Role) {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.UpdateAccountRole(accountId, req.Role)
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

	s.writeJson(w, http.StatusOK, toApiUser(user))
}

// adminStats reports platform-wide totals for the admin dashboard.
func (s *CodePrepApp) adminStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.db.GetPlatformStats()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.PlatformStats{
		TotalAccounts:    stats.TotalAccounts,
		TotalQuestions:   stats.TotalQuestions,
		TotalSubmissions: stats.TotalSubmissions,
		TotalSolved:      stats.TotalSolved,
	})
}

func toApiUser(u database.User) types.User {
	return types.User{
		Id:           u.Id,
		Username:     u.Username,
		EmailAddress: u.EmailAddress,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
