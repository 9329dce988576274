// Package router wires the HTTP surface: home page, sign-up, log-in,
// log-out and a storage health check. Handlers are thin: they parse and
// validate the form, call the service layer, and redirect; unexpected
// errors are forwarded to one centralized handler so a single failing
// request never takes the process down.
package router

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dkotelnikov/authgate/internal/auth"
	"github.com/dkotelnikov/authgate/internal/authenticator"
	"github.com/dkotelnikov/authgate/internal/logger"
	"github.com/dkotelnikov/authgate/internal/models"
	"github.com/dkotelnikov/authgate/internal/service"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type router struct {
	db              pinger
	svc             *service.Service
	auth            authenticator.Authenticator
	signupAutoLogin bool
	validate        *validator.Validate
	homeTemplate    *template.Template
	signUpTemplate  *template.Template
}

const homePage = `<!DOCTYPE html>
<html>
<head><title>authgate</title></head>
<body>
{{if .Username}}
	<h1>Welcome back, {{.Username}}!</h1>
	<p><a href="/log-out">Log out</a></p>
{{else}}
	<h1>Please log in</h1>
	<form action="/log-in" method="post">
		<label>Username <input type="text" name="username"></label>
		<label>Password <input type="password" name="password"></label>
		<button type="submit">Log in</button>
	</form>
	<p><a href="/sign-up">Sign up</a></p>
{{end}}
</body>
</html>
`

const signUpPage = `<!DOCTYPE html>
<html>
<head><title>authgate - sign up</title></head>
<body>
	<h1>Sign up</h1>
	<form action="/sign-up" method="post">
		<label>Username <input type="text" name="username"></label>
		<label>Password <input type="password" name="password"></label>
		<button type="submit">Sign up</button>
	</form>
</body>
</html>
`

type homePageData struct {
	Username string
}

// New builds the chi mux with the logging and session middlewares and all
// route handlers attached.
func New(
	db pinger,
	svc *service.Service,
	au authenticator.Authenticator,
	signupAutoLogin bool,
) http.Handler {
	h := &router{
		db:              db,
		svc:             svc,
		auth:            au,
		signupAutoLogin: signupAutoLogin,
		validate:        validator.New(),
		homeTemplate:    template.Must(template.New("home").Parse(homePage)),
		signUpTemplate:  template.Must(template.New("sign-up").Parse(signUpPage)),
	}

	mux := chi.NewRouter()
	mux.Use(logger.WithLoggingHTTPMiddleware)
	mux.Use(au.WithSession)

	mux.Get(`/`, h.getHome)
	mux.Get(`/sign-up`, h.getSignUpForm)
	mux.Post(`/sign-up`, h.postSignUp)
	mux.Post(`/log-in`, h.postLogIn)
	mux.Post(`/login`, h.postLogIn)
	mux.Get(`/log-out`, h.getLogOut)
	mux.Get(`/logout`, h.getLogOut)
	mux.Get(`/ping`, h.getPing)

	return mux
}

func (h *router) getHome(response http.ResponseWriter, request *http.Request) {
	data := homePageData{}
	if identity := auth.IdentityFromContext(request.Context()); identity != nil {
		data.Username = identity.Username
	}

	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.homeTemplate.Execute(response, data); err != nil {
		h.serverError(response, err)
	}
}

func (h *router) getSignUpForm(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.signUpTemplate.Execute(response, nil); err != nil {
		h.serverError(response, err)
	}
}

func (h *router) postSignUp(response http.ResponseWriter, request *http.Request) {
	form := models.SignUpForm{
		Username: identifierFromForm(request),
		Password: request.PostFormValue("password"),
	}
	if err := h.validate.Struct(form); err != nil {
		http.Error(response, "username and password are required", http.StatusBadRequest)

		return
	}

	usr, err := h.svc.SignUp(request.Context(), form.Username, form.Password)
	if errors.Is(err, models.ErrDuplicateUsername) {
		// The specific cause stays generic so sign-up cannot be used to
		// probe for registered identifiers any more than necessary.
		http.Error(response, "unable to sign up with those credentials", http.StatusConflict)

		return
	}
	if err != nil {
		h.serverError(response, err)

		return
	}

	if h.signupAutoLogin {
		if err := h.auth.BindSession(response, request, usr.ID); err != nil {
			h.serverError(response, err)

			return
		}
	}

	http.Redirect(response, request, `/`, http.StatusSeeOther)
}

func (h *router) postLogIn(response http.ResponseWriter, request *http.Request) {
	form := models.LoginForm{
		Username: identifierFromForm(request),
		Password: request.PostFormValue("password"),
	}
	if err := h.validate.Struct(form); err != nil {
		http.Redirect(response, request, `/`, http.StatusSeeOther)

		return
	}

	usr, err := h.svc.Authenticate(request.Context(), form.Username, form.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		// Unknown identifier and wrong password land here alike: redirect
		// home with the session left unbound, no cause surfaced.
		http.Redirect(response, request, `/`, http.StatusSeeOther)

		return
	}
	if err != nil {
		h.serverError(response, err)

		return
	}

	if err := h.auth.BindSession(response, request, usr.ID); err != nil {
		h.serverError(response, err)

		return
	}

	http.Redirect(response, request, `/`, http.StatusSeeOther)
}

func (h *router) getLogOut(response http.ResponseWriter, request *http.Request) {
	if err := h.auth.ClearSession(response, request); err != nil {
		h.serverError(response, err)

		return
	}

	http.Redirect(response, request, `/`, http.StatusSeeOther)
}

func (h *router) getPing(response http.ResponseWriter, request *http.Request) {
	if err := h.db.Ping(request.Context()); err != nil {
		h.serverError(response, err)

		return
	}

	response.WriteHeader(http.StatusOK)
}

func (h *router) serverError(response http.ResponseWriter, err error) {
	logger.Log.Errorln("Error while handling the request:", zap.Error(err))
	http.Error(response, "internal server error", http.StatusInternalServerError)
}

// identifierFromForm accepts the login identifier from either the
// `username` or the `email` form field, depending on the deployed variant
// of the entry form.
func identifierFromForm(request *http.Request) string {
	if username := request.PostFormValue("username"); username != "" {
		return username
	}

	return request.PostFormValue("email")
}
