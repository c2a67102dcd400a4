package handlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"studio/internal/domain"
	"studio/internal/middleware"
)

const usersKey = "users.json"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string  `json:"token"`
	User  userDTO `json:"user"`
}

type userDTO struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Role             string `json:"role"`
	CreatedAt        int64  `json:"createdAt"`
	LastLoginAt      int64  `json:"lastLoginAt,omitempty"`
	LastLoginCountry string `json:"lastLoginCountry,omitempty"`
}

func toUserDTO(u domain.User) userDTO {
	return userDTO{
		ID:               u.ID,
		Username:         u.Username,
		Role:             u.Role,
		CreatedAt:        u.CreatedAt,
		LastLoginAt:      u.LastLoginAt,
		LastLoginCountry: u.LastLoginCountry,
	}
}

// Login verifies credentials against the user file and issues a session
// token. The login origin country, when resolvable, is recorded on the user
// for the admin view.
func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Username == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "username and password required")
		return
	}

	var users []domain.User
	if _, err := a.Store.ReadJSON(r.Context(), usersKey, &users); err != nil {
		a.Logger.Error().Err(err).Msg("login: read users")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load users")
		return
	}

	hash := HashPassword(req.Password)
	idx := -1
	for i, u := range users {
		if u.Username == req.Username && subtle.ConstantTimeCompare([]byte(u.PasswordHash), []byte(hash)) == 1 {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	users[idx].LastLoginAt = time.Now().UnixMilli()
	if country := a.loginCountry(r); country != "" {
		users[idx].LastLoginCountry = country
	}
	if err := a.Store.WriteJSON(r.Context(), usersKey, users); err != nil {
		a.Logger.Warn().Err(err).Msg("login: persist last-login metadata")
	}

	claims := middleware.SessionClaims{
		Sub:  users[idx].ID,
		Role: users[idx].Role,
		Exp:  time.Now().Add(24 * time.Hour).Unix(),
	}
	token, err := middleware.SignSession(a.Config.SessionSecret, claims)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to issue session")
		return
	}
	a.json(w, http.StatusOK, loginResponse{Token: token, User: toUserDTO(users[idx])})
}

func (a *App) loginCountry(r *http.Request) string {
	if a.Geo == nil {
		return ""
	}
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	country, err := a.Geo.CountryCode(ip)
	if err != nil {
		a.Logger.Debug().Err(err).Str("ip", ip).Msg("login: geoip lookup failed")
		return ""
	}
	return country
}

// HashPassword is the studio's flat-file credential hash.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
