package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/auth-tokens/internal/access"
	apierrors "github.com/pribylovaa/auth-tokens/internal/errors"
	"github.com/pribylovaa/auth-tokens/internal/models"
	logctx "github.com/pribylovaa/auth-tokens/internal/pkg/log"
	"github.com/pribylovaa/auth-tokens/internal/service"
)

// OwnerParam — имя параметра маршрута с id пользователя-владельца ресурса.
const OwnerParam = "userId"

// Authenticator — часть сервиса, нужная шлюзу: проверка access-токена
// и загрузка пользователя по субъекту. *service.Service удовлетворяет интерфейсу.
type Authenticator interface {
	VerifyToken(ctx context.Context, raw string, expected models.TokenType) (*models.Token, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
}

type userKey struct{}

// UserFrom возвращает аутентифицированного пользователя, положенного AuthGate.
func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey{}).(*models.User)
	return u, ok && u != nil
}

// AuthGate — фабрика мидлваров авторизации.
type AuthGate struct {
	auth   Authenticator
	grants *access.Grants
}

// NewAuthGate создаёт шлюз. При grants == nil используется access.DefaultGrants().
func NewAuthGate(auth Authenticator, grants *access.Grants) *AuthGate {
	if grants == nil {
		grants = access.DefaultGrants()
	}
	return &AuthGate{auth: auth, grants: grants}
}

// Require возвращает мидлвар, пропускающий запрос только аутентифицированного
// пользователя, роль которого имеет все caps.
//
// Порядок проверок:
//  1. заголовок Authorization: Bearer <token>;
//  2. проверка токена как access;
//  3. загрузка пользователя по субъекту токена;
//  4. проверка capabilities; при отказе — владелец ресурса ({userId}) сам себе разрешён;
//  5. пользователь кладётся в контекст (UserFrom).
//
// Шаги 1–3 при любой ошибке дают 401 "please authenticate", шаг 4 — 403.
func (g *AuthGate) Require(caps ...access.Capability) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := g.authorize(r, caps)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), userKey{}, user)
			ctx = logctx.With(ctx, slog.Int64("user_id", user.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g *AuthGate) authorize(r *http.Request, caps []access.Capability) (*models.User, error) {
	const op = "middleware.auth.authorize"

	ctx := r.Context()
	log := logctx.From(ctx)

	raw, ok := bearerToken(r)
	if !ok {
		log.Debug("auth_rejected", slog.String("op", op), slog.String("reason", "no_bearer"))
		return nil, apierrors.ErrUnauthenticated
	}

	tok, err := g.auth.VerifyToken(ctx, raw, models.TokenAccess)
	if err != nil {
		log.Debug("auth_rejected",
			slog.String("op", op),
			slog.String("reason", "token"),
			slog.String("err", err.Error()),
		)
		return nil, apierrors.ErrUnauthenticated
	}

	user, err := g.auth.UserByID(ctx, tok.UserID)
	if err != nil {
		level := slog.LevelDebug
		if !errors.Is(err, service.ErrUserNotFound) {
			level = slog.LevelError
		}
		log.Log(ctx, level, "auth_rejected",
			slog.String("op", op),
			slog.String("reason", "user"),
			slog.Int64("user_id", tok.UserID),
			slog.String("err", err.Error()),
		)
		return nil, apierrors.ErrUnauthenticated
	}

	if len(caps) == 0 || g.grants.Allows(user.Role, caps...) {
		return user, nil
	}

	if owner, ok := ownerID(r); ok && owner == user.ID {
		return user, nil
	}

	log.Info("auth_forbidden",
		slog.String("op", op),
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
		slog.Any("granted", g.grants.Capabilities(user.Role)),
	)
	return nil, apierrors.ErrForbidden
}

// bearerToken извлекает токен из "Authorization: Bearer <token>".
// Схема сравнивается без учёта регистра.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func ownerID(r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, OwnerParam)
	if raw == "" {
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
