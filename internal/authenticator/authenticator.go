// Package authenticator declares the authentication surface the router
// depends on, keeping the router decoupled from the auth implementation.
package authenticator

import "net/http"

type Authenticator interface {
	WithSession(h http.Handler) http.Handler
	BindSession(response http.ResponseWriter, request *http.Request, userID string) error
	ClearSession(response http.ResponseWriter, request *http.Request) error
}
