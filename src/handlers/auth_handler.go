package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"bankflow-server/src/logger"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const DefaultTokenTTL = time.Hour

type TokenConfig struct {
	ClientID         string
	ClientSecretHash string // bcrypt
	JWTSecret        []byte
	TTL              time.Duration
}

// IssueToken implements the OAuth2 client_credentials grant for the single
// configured API client.
func IssueToken(cfg TokenConfig) http.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}

	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
			return
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
			return
		}

		clientID := r.PostForm.Get("client_id")
		secret := r.PostForm.Get("client_secret")
		if cfg.ClientID == "" || cfg.ClientSecretHash == "" ||
			subtle.ConstantTimeCompare([]byte(clientID), []byte(cfg.ClientID)) != 1 ||
			bcrypt.CompareHashAndPassword([]byte(cfg.ClientSecretHash), []byte(secret)) != nil {
			log.Warn().Str("client_id", clientID).Str("remote_addr", r.RemoteAddr).Msg("Invalid client credentials")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
			return
		}

		now := time.Now()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
		})
		tokenString, err := token.SignedString(cfg.JWTSecret)
		if err != nil {
			log.Error().Err(err).Str("client_id", clientID).Msg("Failed to generate JWT token")
			http.Error(w, "Error generating token", http.StatusInternalServerError)
			return
		}

		log.Info().Str("client_id", clientID).Msg("Issued access token")
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": tokenString,
			"token_type":   "Bearer",
			"expires_in":   int(cfg.TTL.Seconds()),
		})
	}
}
