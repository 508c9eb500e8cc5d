package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"billops/internal/auth"
	"billops/internal/expense"
	"billops/internal/log"
	"billops/internal/storage"
)

// authorize checks the session caller's role against the policy. In shadow
// mode a denial is only logged.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, object, action string) bool {
	if s.deps.Authz == nil {
		return true
	}
	caller, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return false
	}
	role := ""
	if s.deps.Auth != nil {
		if role, err = s.deps.Auth.Role(caller); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return false
		}
	}
	allowed, enforced, err := s.deps.Authz.Authorize(role, object, action)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return false
	}
	if allowed {
		return true
	}
	log.FromContext(r.Context()).WarnContext(r.Context(), "authz denied",
		log.FieldEmployeeID, caller, "role", role, "object", object, "action", action, "enforced", enforced)
	if !enforced {
		return true
	}
	writeError(w, http.StatusForbidden, "권한이 없습니다")
	return false
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmployeeID string `json:"employeeId"`
		Password   string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, errMissingParams)
		return
	}
	user, err := s.deps.Auth.Login(req.EmployeeID, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeFailure(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{"success": true, "user": user}
	if s.deps.Sessions != nil {
		token, err := s.deps.Sessions.Create(user.EmployeeID)
		if err != nil {
			writeFailure(w, http.StatusInternalServerError, err.Error())
			return
		}
		setSessionCookie(w, token, s.deps.Sessions.TTL())
		resp["token"] = token
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions != nil {
		if err := s.deps.Sessions.Revoke(sessionToken(r)); err != nil {
			writeFailure(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleUpdateProfile lets a signed-in user edit their own profile. Editing
// anyone else goes through the admin_users policy.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	target := r.PathValue("employeeId")
	caller, err := s.caller(r)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	if (caller == "" || caller != target) && !s.authorize(w, r, auth.ObjectAdminUsers, auth.ActionWrite) {
		return
	}
	var p auth.ProfileUpdate
	if err := decodeJSON(r, &p); err != nil {
		writeFailure(w, http.StatusBadRequest, errMissingParams)
		return
	}
	user, err := s.deps.Auth.UpdateProfile(target, p)
	switch {
	case errors.Is(err, auth.ErrNoChanges), errors.Is(err, auth.ErrPasswordTooShort):
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, storage.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "사용자를 찾을 수 없습니다")
		return
	case err != nil:
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, auth.ObjectSystem, auth.ActionReset) {
		return
	}
	logger := log.FromContext(r.Context())
	if err := errors.Join(s.deps.Workspace.Reset(), s.deps.DB.ResetState()); err != nil {
		logger.ErrorContext(r.Context(), "reset failed", log.FieldError, err)
		writeFailure(w, http.StatusInternalServerError, "초기화 중 오류가 발생했습니다.")
		return
	}
	logger.InfoContext(r.Context(), "workspace reset")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "초기화가 완료되었습니다."})
}

func (s *Server) handleExpense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "파일이 너무 큽니다")
			return
		}
		writeError(w, http.StatusBadRequest, "파일이 업로드되지 않았습니다")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "파일이 업로드되지 않았습니다")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "파일이 선택되지 않았습니다")
		return
	}

	category := r.FormValue("category")
	if category == "" {
		category = expense.DefaultCategory
	}
	start, end := r.FormValue("start_date"), r.FormValue("end_date")
	creds := expense.Credentials{UserID: r.FormValue("user_id"), Password: r.FormValue("password")}
	var missing []string
	for _, f := range [][2]string{{"start_date", start}, {"end_date", end}, {"user_id", creds.UserID}, {"password", creds.Password}} {
		if f[1] == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "필수 파라미터가 누락되었습니다: "+strings.Join(missing, ", "))
		return
	}
	if err := expense.ValidatePeriod(start, end); err != nil {
		writeError(w, http.StatusBadRequest, expense.ErrBadPeriod.Error())
		return
	}

	logger := log.FromContext(r.Context()).WithComponent(log.ComponentExpense)
	data, err := io.ReadAll(file)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "파일 로드 실패: "+err.Error())
		return
	}
	st, err := expense.Parse(data, header.Filename)
	if err != nil {
		logger.WarnContext(r.Context(), "expense statement unreadable", log.FieldFile, header.Filename, log.FieldError, err)
		writeFailure(w, http.StatusInternalServerError, "파일 로드 실패: "+err.Error())
		return
	}
	if len(st.Rows) == 0 {
		writeError(w, http.StatusBadRequest, expense.ErrNoRows.Error())
		return
	}

	res, err := s.deps.Expense.Submit(r.Context(), creds, expense.Batch{
		Category:  category,
		StartDate: start,
		EndDate:   end,
		Rows:      st.Rows,
	})
	if errors.Is(err, expense.ErrLoginFailed) {
		logger.WarnContext(r.Context(), "groupware login failed", log.FieldEmployeeID, creds.UserID)
		writeFailure(w, http.StatusOK, err.Error())
		return
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "expense submission failed", log.FieldError, err)
		writeFailure(w, http.StatusInternalServerError, "그룹웨어 자동화 실패: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "지출결의서 자동입력이 완료되었습니다",
		"processed_count": res.Processed,
		"total_count":     st.Total,
	})
}
