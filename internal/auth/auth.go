// Package auth implements the per-request session pipeline. The cookie
// carries only an opaque session id wrapped in a signed JWT; all session
// state lives server-side in the storage backend.
//
// For every request the middleware loads (or creates) the session, resolves
// the bound user into the request context, runs the inner handler, and then
// persists any session mutations before the response is flushed.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/dkotelnikov/authgate/internal/logger"
	"github.com/dkotelnikov/authgate/internal/models"
	"github.com/dkotelnikov/authgate/internal/session"
	"github.com/dkotelnikov/authgate/internal/user"
)

type sessionAndUserKeeper interface {
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
	SaveSession(ctx context.Context, sess *session.Session) error
	GetSessionByID(ctx context.Context, sessionID string) (*session.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Auth handles session loading, cookie issuance, and the bind/unbind
// transitions performed by the log-in and log-out handlers.
type Auth struct {
	db sessionAndUserKeeper

	// sessionCookieName is the name of the cookie carrying the signed session id.
	sessionCookieName string

	// cookieSigningSecretKey is the key used to sign the session cookie.
	cookieSigningSecretKey []byte

	// sessionTTL is how long a fresh session (and its cookie) lives.
	sessionTTL time.Duration
}

// Claims is the payload of the session cookie: the registered JWT claims
// plus the opaque server-side session id.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// SessionKey is the context key under which the request's session is stored.
const SessionKey ContextKey = "session"

// IdentityKey is the context key under which the authenticated user is stored.
const IdentityKey ContextKey = "identity"

// New creates an Auth handler over the given storage, cookie name, signing
// secret and session lifetime.
func New(
	db sessionAndUserKeeper,
	sessionCookieName string,
	cookieSigningSecretKey []byte,
	sessionTTL time.Duration,
) *Auth {
	return &Auth{
		db:                     db,
		sessionCookieName:      sessionCookieName,
		cookieSigningSecretKey: cookieSigningSecretKey,
		sessionTTL:             sessionTTL,
	}
}

// WithSession is the session middleware. It guarantees the inner handler
// always observes a session in the request context, and an identity whenever
// the session is bound to an existing user. Mutations performed by the inner
// handler are persisted after it returns; a persistence failure is logged
// and does not block the response.
func (a *Auth) WithSession(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		sess, isNew, identity, err := a.resolveSession(request)
		if err != nil {
			logger.Log.Debugln("Error resolving the request session:", zap.Error(err))
			response.WriteHeader(http.StatusInternalServerError)

			return
		}

		if isNew {
			if err := a.db.SaveSession(request.Context(), sess); err != nil {
				logger.Log.Debugln("Error saving the fresh session:", zap.Error(err))
				response.WriteHeader(http.StatusInternalServerError)

				return
			}
			sess.MarkSaved()

			if err := a.setSessionCookie(response, sess); err != nil {
				logger.Log.Debugln("Error signing the session cookie:", zap.Error(err))
				response.WriteHeader(http.StatusInternalServerError)

				return
			}
		}

		ctx := context.WithValue(request.Context(), SessionKey, sess)
		if identity != nil {
			ctx = context.WithValue(ctx, IdentityKey, identity)
		}

		h.ServeHTTP(response, request.WithContext(ctx))

		a.persistMutations(request.Context(), sess)
	}

	return http.HandlerFunc(middleware)
}

// BindSession transitions the request's session to the authenticated state.
// The session id is rotated, the pre-login row is removed, and a cookie with
// the new signed id is issued. The bound row itself is persisted by the
// middleware once the handler returns.
func (a *Auth) BindSession(response http.ResponseWriter, request *http.Request, userID string) error {
	sess := SessionFromContext(request.Context())
	if sess == nil {
		return errors.New("no session in the request context")
	}

	oldID := sess.Bind(userID)
	if err := a.db.DeleteSession(request.Context(), oldID); err != nil {
		return err
	}

	return a.setSessionCookie(response, sess)
}

// ClearSession unbinds and destroys the request's session and expires the
// cookie. The row is deleted synchronously so a failure can be forwarded to
// the caller's error handling instead of being swallowed.
func (a *Auth) ClearSession(response http.ResponseWriter, request *http.Request) error {
	sess := SessionFromContext(request.Context())
	if sess == nil {
		return errors.New("no session in the request context")
	}

	sess.Unbind()
	if err := a.db.DeleteSession(request.Context(), sess.ID()); err != nil {
		return err
	}
	sess.MarkSaved()

	a.expireSessionCookie(response)

	return nil
}

// SessionFromContext returns the session attached by WithSession, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(SessionKey).(*session.Session)

	return sess
}

// IdentityFromContext returns the authenticated user attached by
// WithSession, or nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *user.User {
	identity, _ := ctx.Value(IdentityKey).(*user.User)

	return identity
}

func (a *Auth) resolveSession(
	request *http.Request,
) (sess *session.Session, isNew bool, identity *user.User, err error) {
	sessionID := a.sessionIDFromCookie(request)
	if sessionID != "" {
		loaded, loadErr := a.db.GetSessionByID(request.Context(), sessionID)
		switch {
		case errors.Is(loadErr, models.ErrSessionNotFound):
			// Unknown or expired id: fall through to a fresh session.
		case loadErr != nil:
			return nil, false, nil, loadErr
		default:
			sess = loaded
		}
	}

	if sess == nil {
		sess = session.New(a.sessionTTL)
		isNew = true
	}

	if sess.Authenticated() {
		usr, userErr := a.db.GetUserByID(request.Context(), sess.UserID())
		switch {
		case errors.Is(userErr, models.ErrUserNotFound):
			// The referenced user no longer exists: the session must never
			// surface a dangling binding, so it degrades to anonymous.
			sess.Unbind()
		case userErr != nil:
			return nil, false, nil, userErr
		default:
			identity = usr
		}
	}

	return sess, isNew, identity, nil
}

func (a *Auth) persistMutations(ctx context.Context, sess *session.Session) {
	if !sess.Dirty() {
		return
	}

	var err error
	if sess.Destroyed() {
		err = a.db.DeleteSession(ctx, sess.ID())
	} else {
		err = a.db.SaveSession(ctx, sess)
	}
	if err != nil {
		logger.Log.Errorln("Error persisting session mutations:", zap.Error(err))

		return
	}

	sess.MarkSaved()
}

func (a *Auth) sessionIDFromCookie(request *http.Request) string {
	cookie, err := request.Cookie(a.sessionCookieName)
	if err != nil {
		return ""
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		cookie.Value,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}

			return a.cookieSigningSecretKey, nil
		},
	)
	if err != nil || !token.Valid {
		return ""
	}

	return claims.SessionID
}

func (a *Auth) setSessionCookie(response http.ResponseWriter, sess *session.Session) error {
	signed, err := a.buildJWTString(&Claims{SessionID: sess.ID()})
	if err != nil {
		return err
	}

	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.sessionCookieName,
			Value:    signed,
			Path:     "/",
			MaxAge:   int(a.sessionTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
	)

	return nil
}

func (a *Auth) expireSessionCookie(response http.ResponseWriter) {
	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.sessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
	)
}

func (a *Auth) buildJWTString(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	tokenString, err := token.SignedString(a.cookieSigningSecretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
