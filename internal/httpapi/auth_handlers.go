package httpapi

import (
	"errors"
	"net/http"

	"taskboard.org/internal/auth"
	"taskboard.org/internal/obs"
)

type registerRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Secret string `json:"secret"`
	Role   string `json:"role"`
	Team   *int   `json:"team"`
}

type loginRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	User *auth.Identity `json:"user"`
	auth.TokenPair
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	identity, pair, err := a.sessions.Register(r.Context(), req.Name, req.Email, req.Secret, auth.Role(req.Role), req.Team)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{User: identity, TokenPair: pair})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	identity, pair, err := a.sessions.Login(r.Context(), req.Email, req.Secret)
	if err != nil {
		obs.ObserveLogin("denied")
		handleDomainError(w, r, err)
		return
	}
	obs.ObserveLogin("ok")
	writeJSON(w, http.StatusOK, sessionResponse{User: identity, TokenPair: pair})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}
	pair, err := a.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenRevoked):
			obs.ObserveRotation("revoked")
		case errors.Is(err, auth.ErrTokenExpired):
			obs.ObserveRotation("expired")
		default:
			obs.ObserveRotation("invalid")
		}
		handleDomainError(w, r, err)
		return
	}
	obs.ObserveRotation("ok")
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}
	if err := a.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	current, err := a.sessions.Me(r.Context(), identity.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

type profileRequest struct {
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	CurrentSecret string  `json:"current_secret"`
	NewSecret     *string `json:"new_secret"`
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.sessions.UpdateProfile(r.Context(), identity.ID, auth.ProfileUpdate{
		Name:          req.Name,
		Email:         req.Email,
		CurrentSecret: req.CurrentSecret,
		NewSecret:     req.NewSecret,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
