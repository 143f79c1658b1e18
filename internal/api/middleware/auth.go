package middleware

import (
	"net/http"
	"strings"

	"autotrader/pkg/crypto"
	"autotrader/pkg/utils"
)

// Auth - middleware проверки API токена
//
// Клиент передаёт токен в заголовке Authorization: Bearer <token>,
// сервер сравнивает его с bcrypt-хешем из API_TOKEN_HASH.
// Пустой хеш отключает проверку (локальное развертывание).
//
// Использование:
//
//	api := router.PathPrefix("/api/v1").Subrouter()
//	api.Use(middleware.Auth(cfg.Security.APITokenHash))
func Auth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokenHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="autotrader"`)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			if err := crypto.VerifyToken(token, tokenHash); err != nil {
				utils.L().WithComponent("auth").Warn("rejected api token",
					utils.String("path", r.URL.Path), utils.String("remote", r.RemoteAddr))
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken извлекает токен из Authorization.
// Для WebSocket (браузер не может задать заголовок) допускается ?token=.
func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", false
		}
		return strings.TrimSpace(token), true
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

func writeJSONError(w http.ResponseWriter, code int, errText, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body, _ := json.Marshal(map[string]string{"error": errText, "message": message})
	_, _ = w.Write(body)
}
