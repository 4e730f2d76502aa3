package rpc

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/velotype/velotype/server/auth"
	veloDB "github.com/velotype/velotype/server/db"
	"github.com/velotype/velotype/server/types"
)

// Usernames double as display names and leaderboard keys, so the charset
// stays narrow.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	db, ok := s.database(w)
	if !ok {
		return
	}
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(username) {
		handleError(w, "invalid username", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && strings.Count(email, "@") != 1 {
		handleError(w, "invalid email", http.StatusBadRequest)
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			handleError(w, err.Error(), http.StatusBadRequest)
			return
		}
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	if _, err := db.UserByUsername(ctx, username); err == nil {
		handleError(w, "username taken", http.StatusConflict)
		return
	} else if !errors.Is(err, veloDB.ErrNotFound) {
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}

	user := &types.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		Created:      time.Now(),
	}
	if email != "" {
		user.EmailHash = s.cfg.Auth.EmailLookupHash(email)
		if _, err := db.UserByEmailHash(ctx, user.EmailHash); err == nil {
			handleError(w, "email already registered", http.StatusConflict)
			return
		} else if !errors.Is(err, veloDB.ErrNotFound) {
			handleError(w, "internal error", http.StatusInternalServerError)
			return
		}
		cipher, err := s.cfg.Auth.EncryptEmail(email)
		if err != nil {
			handleError(w, "internal error", http.StatusInternalServerError)
			return
		}
		user.EmailCipher = cipher
	}

	if err := db.SaveUser(ctx, user); err != nil {
		log.WithError(err).Error("Could not persist new account")
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	// The ladder row starts as a placement shell: no rating until the
	// placement games are in.
	if err := db.SaveRating(ctx, &types.Rating{UserID: user.ID, Updated: user.Created}); err != nil {
		log.WithError(err).Error("Could not persist ladder row")
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}

	token, expires, err := s.cfg.Auth.Issue(user.ID, user.Username, false)
	if err != nil {
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	accountsRegisteredTotal.Inc()
	log.WithFields(logrus.Fields{
		"userId":   user.ID,
		"username": user.Username,
	}).Info("Account created")
	writeJSON(w, http.StatusCreated, &authResponse{
		Token:     token,
		ExpiresAt: expires.UnixMilli(),
		UserID:    user.ID,
		Username:  user.Username,
	})
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	db, ok := s.database(w)
	if !ok {
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := db.UserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, veloDB.ErrNotFound) {
			handleError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		handleError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	token, expires, err := s.cfg.Auth.Issue(user.ID, user.Username, req.Remember)
	if err != nil {
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, &authResponse{
		Token:     token,
		ExpiresAt: expires.UnixMilli(),
		UserID:    user.ID,
		Username:  user.Username,
	})
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authed(w, r); !ok {
		return
	}
	if err := s.cfg.Auth.Revoke(bearerToken(r)); err != nil {
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
