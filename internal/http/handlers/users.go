package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/middleware"
)

// ListUsers returns the user directory without credential hashes. Admin only.
func (a *App) ListUsers(w http.ResponseWriter, r *http.Request) {
	var users []domain.User
	if _, err := a.Store.ReadJSON(r.Context(), usersKey, &users); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load users")
		return
	}
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	a.json(w, http.StatusOK, out)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// CreateUser adds an account. Admin only.
func (a *App) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Username == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "username and password required")
		return
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}

	var users []domain.User
	if _, err := a.Store.ReadJSON(r.Context(), usersKey, &users); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load users")
		return
	}
	for _, u := range users {
		if u.Username == req.Username {
			a.error(w, http.StatusConflict, "conflict", "username already taken")
			return
		}
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: HashPassword(req.Password),
		Role:         role,
		CreatedAt:    time.Now().UnixMilli(),
	}
	users = append(users, user)
	if err := a.Store.WriteJSON(r.Context(), usersKey, users); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist users")
		return
	}
	a.json(w, http.StatusCreated, toUserDTO(user))
}

// DeleteUser removes an account by id. Admin only.
func (a *App) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	var users []domain.User
	if _, err := a.Store.ReadJSON(r.Context(), usersKey, &users); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load users")
		return
	}
	kept := users[:0]
	found := false
	for _, u := range users {
		if u.ID == userID {
			found = true
			continue
		}
		kept = append(kept, u)
	}
	if !found {
		a.error(w, http.StatusNotFound, "not_found", "no such user")
		return
	}
	if err := a.Store.WriteJSON(r.Context(), usersKey, kept); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist users")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"deleted": userID})
}

// RequireAdmin gates admin-only routes.
func (a *App) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if middleware.RoleFromContext(r.Context()) != domain.RoleAdmin {
			a.error(w, http.StatusForbidden, "forbidden", "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}
