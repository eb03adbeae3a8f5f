package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"mypeeps/internal/auth/model"
	"mypeeps/internal/auth/repository"
	"mypeeps/internal/auth/service"
	"mypeeps/middleware"
	"mypeeps/pkg/logger"
	"mypeeps/pkg/respond"

	"github.com/gorilla/mux"
)

type AuthHandler struct {
	Service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{Service: service}
}

// RegisterPublic mounts the endpoints that issue tokens.
func (h *AuthHandler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/auth/register", h.SignUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.SignIn).Methods(http.MethodPost)
}

// RegisterPrivate mounts the endpoints behind the auth middleware.
func (h *AuthHandler) RegisterPrivate(r *mux.Router) {
	r.HandleFunc("/auth/me", h.Me).Methods(http.MethodGet)
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req model.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Service.Register(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		respond.JSON(w, http.StatusCreated, resp)
	case errors.Is(err, service.ErrEmailExists):
		respond.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrWeakPassword), errors.Is(err, service.ErrInvalidEmail):
		respond.Error(w, http.StatusBadRequest, err.Error())
	default:
		logger.Sugar.Errorf("Handler: Failed to register: %v", err)
		respond.Error(w, http.StatusInternalServerError, "registration failed")
	}
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req model.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Service.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, resp)
	case errors.Is(err, service.ErrInvalidCredentials):
		respond.Error(w, http.StatusUnauthorized, err.Error())
	default:
		logger.Sugar.Errorf("Handler: Failed to log in: %v", err)
		respond.Error(w, http.StatusInternalServerError, "login failed")
	}
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	info, err := h.Service.Me(r.Context(), middleware.GetUserID(r.Context()))
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, info)
	case errors.Is(err, repository.ErrNotFound):
		// token outlived its account
		respond.Error(w, http.StatusUnauthorized, "account no longer exists")
	default:
		logger.Sugar.Errorf("Handler: Failed to load user: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to load user")
	}
}
