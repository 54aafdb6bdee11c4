// Package service implements the groupledger Connect services on top of the
// ledger engine, the authorization guard and the store.
package service

import (
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/cache"
	"github.com/mmynk/groupledger/internal/storage"
	"github.com/mmynk/groupledger/pkg/api/apiconnect"
)

// Services bundles every RPC service of the server.
type Services struct {
	Auth    *AuthService
	Groups  *GroupService
	Members *MemberService
	Items   *ItemService
}

// New builds all services over one store. balances may be nil.
func New(store storage.Store, authenticator auth.Authenticator, jwtManager *auth.JWTManager, balances cache.BalanceCache) *Services {
	directory := auth.NewDirectory(store)
	return &Services{
		Auth:    NewAuthService(authenticator, jwtManager, store),
		Groups:  NewGroupService(store, directory, balances),
		Members: NewMemberService(store, directory, balances),
		Items:   NewItemService(store, balances),
	}
}

// Route is a Connect handler and the path prefix it serves.
type Route struct {
	Path    string
	Handler http.Handler
}

// Routes returns the HTTP handlers of every service built with opts.
func (s *Services) Routes(opts ...connect.HandlerOption) []Route {
	var routes []Route
	add := func(path string, h http.Handler) {
		routes = append(routes, Route{Path: path, Handler: h})
	}
	add(apiconnect.NewAuthServiceHandler(s.Auth, opts...))
	add(apiconnect.NewGroupServiceHandler(s.Groups, opts...))
	add(apiconnect.NewMemberServiceHandler(s.Members, opts...))
	add(apiconnect.NewItemServiceHandler(s.Items, opts...))
	return routes
}

// PublicProcedures lists the procedures callable without a token.
func PublicProcedures() []string {
	return []string{
		apiconnect.AuthServiceRegisterProcedure,
		apiconnect.AuthServiceLoginProcedure,
	}
}
