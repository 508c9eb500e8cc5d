package httpapi

import (
	"errors"
	"net/http"

	"billops/internal"
	"billops/internal/auth"
	"billops/internal/log"
	"billops/internal/storage"
)

const errAccountNotFound = "계정을 찾을 수 없습니다"

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, auth.ObjectAccounts, auth.ActionRead) {
		return
	}
	accounts, err := s.deps.DB.ListAccounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, auth.ObjectAccounts, auth.ActionRead) {
		return
	}
	a, err := s.deps.DB.GetAccount(r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, errAccountNotFound)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, auth.ObjectAccounts, auth.ActionWrite) {
		return
	}
	var a internal.Account
	if err := decodeJSON(r, &a); err != nil {
		writeError(w, http.StatusBadRequest, errMissingParams)
		return
	}
	switch a.AccountType {
	case internal.AccountSMS, internal.AccountCall:
	default:
		writeError(w, http.StatusBadRequest, "account_type은 sms 또는 call이어야 합니다")
		return
	}
	id, err := s.deps.DB.CreateAccount(a)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "account saved", "account_id", id)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "계정이 생성되었습니다", "account_id": id})
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, auth.ObjectAccounts, auth.ActionWrite) {
		return
	}
	var patch storage.AccountPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, errMissingParams)
		return
	}
	err := s.deps.DB.UpdateAccount(r.PathValue("id"), patch)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, errAccountNotFound)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "계정이 수정되었습니다"})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, auth.ObjectAccounts, auth.ActionWrite) {
		return
	}
	err := s.deps.DB.DeleteAccount(r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, errAccountNotFound)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "계정이 삭제되었습니다"})
}
