// Package handler provides the HTTP API for Leonidas Directory.
package handler

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/leonidas-directory/internal/domain"
	"github.com/prn-tf/leonidas-directory/internal/service"
)

// UserHandler handles user directory requests.
type UserHandler struct {
	userService  *service.UserService
	queryService *service.QueryService
	logger       zerolog.Logger
}

// UserHandlerConfig contains configuration for the user handler.
type UserHandlerConfig struct {
	UserService  *service.UserService
	QueryService *service.QueryService
	Logger       zerolog.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(cfg UserHandlerConfig) *UserHandler {
	return &UserHandler{
		userService:  cfg.UserService,
		queryService: cfg.QueryService,
		logger:       cfg.Logger.With().Str("handler", "user").Logger(),
	}
}

// RegisterRoutes registers user API routes.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Post("/user/create", h.handleCreate)
	r.Put("/user/update-profile", h.handleUpdateProfile)
	r.Put("/user/update-password", h.handleUpdatePassword)
	r.Put("/user/update-login", h.handleUpdateLogin)
	r.Get("/user/active", h.handleListActive)
	r.Get("/user/by-login/{login}", h.handleGetByLogin)
	r.Get("/user/current", h.handleGetSelf)
	r.Get("/user/older-than/{age}", h.handleOlderThan)
	r.Delete("/user/{login}", h.handleDelete)
	r.Put("/user/restore/{login}", h.handleRestore)
}

// =============================================================================
// Request DTOs and validation
// =============================================================================

var (
	loginPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	namePattern  = regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ ]+$`)
)

func validateLogin(login string) string {
	if len(login) < 3 || len(login) > 50 {
		return "Login must be 3-50 characters"
	}
	if !loginPattern.MatchString(login) {
		return "Login must contain only Latin letters and digits"
	}
	return ""
}

func validatePassword(password string) string {
	if len(password) < 6 || len(password) > 100 {
		return "Password must be 6-100 characters"
	}
	if !loginPattern.MatchString(password) {
		return "Password must contain only Latin letters and digits"
	}
	return ""
}

func validateName(name string) string {
	if name == "" || utf8.RuneCountInString(name) > 100 {
		return "Name must be 1-100 characters"
	}
	if !namePattern.MatchString(name) {
		return "Name must contain only Latin or Cyrillic letters and spaces"
	}
	return ""
}

// parseBirthday accepts RFC 3339 timestamps and bare dates. The core
// normalizes to date precision either way.
func parseBirthday(raw string) (*time.Time, string) {
	if raw == "" {
		return nil, ""
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, "Birthday must be an RFC 3339 timestamp or YYYY-MM-DD"
		}
	}
	if t.After(time.Now()) {
		return nil, "Birthday must not be in the future"
	}
	return &t, ""
}

type createUserRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Gender   int    `json:"gender"`
	Birthday string `json:"birthday,omitempty"`
	Admin    bool   `json:"is_admin"`
}

type updateProfileRequest struct {
	Login    string  `json:"login"`
	Name     *string `json:"name,omitempty"`
	Gender   *int    `json:"gender,omitempty"`
	Birthday *string `json:"birthday,omitempty"`
}

type updatePasswordRequest struct {
	Login       string `json:"login"`
	NewPassword string `json:"new_password"`
}

type updateLoginRequest struct {
	Login    string `json:"login"`
	NewLogin string `json:"new_login"`
}

func decodeBody(r *http.Request, dst interface{}) string {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return "Invalid request body"
	}
	return ""
}

// adminCreds reads the acting admin's credentials from query parameters.
func adminCreds(r *http.Request) service.Credentials {
	q := r.URL.Query()
	return service.Credentials{
		Login:    q.Get("adminLogin"),
		Password: q.Get("adminPassword"),
	}
}

// userCreds reads the acting caller's credentials from query parameters.
// Update operations accept both admins and the users themselves here.
func userCreds(r *http.Request) service.Credentials {
	q := r.URL.Query()
	return service.Credentials{
		Login:    q.Get("currentUserLogin"),
		Password: q.Get("currentUserPassword"),
	}
}

// =============================================================================
// Mutation handlers
// =============================================================================

func (h *UserHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if msg := decodeBody(r, &req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if msg := validateLogin(req.Login); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validatePassword(req.Password); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validateName(req.Name); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	gender := domain.Gender(req.Gender)
	if !gender.Valid() {
		writeError(w, http.StatusBadRequest, "Gender must be 0, 1 or 2")
		return
	}
	birthday, msg := parseBirthday(req.Birthday)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	user, err := h.userService.Create(r.Context(), service.CreateUserInput{
		Login:    req.Login,
		Password: req.Password,
		Name:     req.Name,
		Gender:   gender,
		Birthday: birthday,
		Admin:    req.Admin,
	}, adminCreds(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user.Public())
}

func (h *UserHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if msg := decodeBody(r, &req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if req.Name == nil && req.Gender == nil && req.Birthday == nil {
		writeError(w, http.StatusBadRequest, "At least one field must be provided")
		return
	}

	input := service.UpdateProfileInput{Login: req.Login}
	if req.Name != nil {
		if msg := validateName(*req.Name); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		input.Name = req.Name
	}
	if req.Gender != nil {
		gender := domain.Gender(*req.Gender)
		if !gender.Valid() {
			writeError(w, http.StatusBadRequest, "Gender must be 0, 1 or 2")
			return
		}
		input.Gender = &gender
	}
	if req.Birthday != nil {
		birthday, msg := parseBirthday(*req.Birthday)
		if msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		input.Birthday = birthday
	}

	if err := h.userService.UpdateProfile(r.Context(), input, userCreds(r)); err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil)
}

func (h *UserHandler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if msg := decodeBody(r, &req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validatePassword(req.NewPassword); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	err := h.userService.UpdatePassword(r.Context(), service.UpdatePasswordInput{
		Login:       req.Login,
		NewPassword: req.NewPassword,
	}, userCreds(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil)
}

func (h *UserHandler) handleUpdateLogin(w http.ResponseWriter, r *http.Request) {
	var req updateLoginRequest
	if msg := decodeBody(r, &req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validateLogin(req.NewLogin); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	err := h.userService.UpdateLogin(r.Context(), service.UpdateLoginInput{
		OldLogin: req.Login,
		NewLogin: req.NewLogin,
	}, userCreds(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil)
}

func (h *UserHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	login := chi.URLParam(r, "login")
	hard := strings.EqualFold(r.URL.Query().Get("hard"), "true")

	if err := h.userService.Delete(r.Context(), login, hard, adminCreds(r)); err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil)
}

func (h *UserHandler) handleRestore(w http.ResponseWriter, r *http.Request) {
	login := chi.URLParam(r, "login")

	if err := h.userService.Restore(r.Context(), login, adminCreds(r)); err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil)
}

// =============================================================================
// Query handlers
// =============================================================================

func (h *UserHandler) handleListActive(w http.ResponseWriter, r *http.Request) {
	users, err := h.queryService.ListActive(r.Context(), adminCreds(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, users)
}

func (h *UserHandler) handleGetByLogin(w http.ResponseWriter, r *http.Request) {
	login := chi.URLParam(r, "login")

	user, err := h.queryService.GetByLogin(r.Context(), login, adminCreds(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

func (h *UserHandler) handleGetSelf(w http.ResponseWriter, r *http.Request) {
	user, err := h.queryService.GetSelf(r.Context(), userCreds(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user.Public())
}

func (h *UserHandler) handleOlderThan(w http.ResponseWriter, r *http.Request) {
	age, err := strconv.Atoi(chi.URLParam(r, "age"))
	if err != nil || age < 0 {
		writeError(w, http.StatusBadRequest, "Age must be a non-negative integer")
		return
	}

	users, err := h.queryService.OlderThan(r.Context(), age, adminCreds(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, users)
}
