package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	"strconv"
)

// debugUsername и debugPassword для защиты debug endpoints.
// Загружаются из переменных окружения DEBUG_USERNAME и DEBUG_PASSWORD.
// Если не установлены, debug endpoints будут недоступны в production.
var (
	debugUsername = os.Getenv("DEBUG_USERNAME")
	debugPassword = os.Getenv("DEBUG_PASSWORD")
)

// DebugAuth - middleware для защиты debug/pprof endpoints
//
// Назначение:
// Защищает debug endpoints (/debug/pprof/*) от неавторизованного доступа.
// Использует HTTP Basic Authentication для простоты.
//
// Конфигурация:
// - DEBUG_USERNAME: имя пользователя для доступа к debug endpoints
// - DEBUG_PASSWORD: пароль для доступа к debug endpoints
// - Если переменные не установлены, доступ запрещен (401)
//
// Безопасность:
// - Использует constant-time сравнение для предотвращения timing attacks
// - В production ОБЯЗАТЕЛЬНО установить DEBUG_USERNAME и DEBUG_PASSWORD
//
// Использование:
//
//	debug := router.PathPrefix("/debug").Subrouter()
//	debug.Use(middleware.DebugAuth)
func DebugAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Если credentials не настроены, запрещаем доступ в production
		if debugUsername == "" || debugPassword == "" {
			// В development (если явно не настроено) разрешаем доступ
			if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Debug endpoints disabled. Set DEBUG_USERNAME and DEBUG_PASSWORD.", http.StatusForbidden)
			return
		}

		// Получаем credentials из запроса
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Constant-time сравнение для предотвращения timing attacks
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(debugUsername)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(debugPassword)) == 1

		if !userMatch || !passMatch {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// contextKey - отдельный тип для ключей context, чтобы избежать коллизий
type contextKey string

const userIDKey contextKey = "user_id"

// DefaultUserID используется когда клиент не передал заголовок X-User-ID.
// Симулятор изначально однопользовательский, поэтому отсутствие заголовка
// не считается ошибкой.
const DefaultUserID = 1

// UserID - middleware идентификации пользователя
//
// Назначение:
// Извлекает идентификатор пользователя из заголовка X-User-ID и добавляет
// его в context запроса. Полноценная аутентификация (сессии, JWT) в
// симуляторе отсутствует: деньги виртуальные, а API ключи реальных бирж
// привязаны к user_id и зашифрованы на стороне сервера.
//
// Поведение:
// - Заголовок отсутствует: используется DefaultUserID
// - Заголовок не парсится или <= 0: 400 Bad Request
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := DefaultUserID

		if raw := r.Header.Get("X-User-ID"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil || id <= 0 {
				http.Error(w, "Invalid X-User-ID header", http.StatusBadRequest)
				return
			}
			userID = id
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext возвращает идентификатор пользователя из context.
// Для запросов, не прошедших через UserID middleware, возвращает DefaultUserID.
func UserFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return DefaultUserID
}
