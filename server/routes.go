package server

import "fmt"

const (
	apiRoot = "/api"

	authorizationURLRoute = "GET /api/auth/providers/tda"
	callbackRoute         = "GET /api/auth/callback/tda"

	signUpRoute  = "POST /api/auth/providers/tradetracker/signup"
	signInRoute  = "POST /api/auth/providers/tradetracker/signin"
	signOutRoute = "POST /api/auth/providers/tradetracker/signout"

	accountsRoute = "GET /api/accounts"
	ordersRoute   = "GET /api/accounts/{accountID}/orders"
)

func refreshRoute(providerName string) string {
	return fmt.Sprintf("POST /api/auth/providers/%s", providerName)
}

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+apiRoot, s.Root)
	s.RegisterRouteFunc(authorizationURLRoute, s.AuthorizationURL)
	s.RegisterRouteFunc(callbackRoute, s.Callback)

	s.RegisterRouteFunc(refreshRoute(s.local.Name()), s.RefreshHandler(s.local))
	s.RegisterRouteFunc(refreshRoute(s.upstream.Name()), s.RefreshHandler(s.upstream))

	s.RegisterRouteFunc(signUpRoute, s.SignUp)
	s.RegisterRouteFunc(signInRoute, s.SignIn)
	s.RegisterRouteFunc(signOutRoute, s.SignOut)

	s.RegisterRouteFunc(accountsRoute, s.RequireAuth(s.Accounts))
	s.RegisterRouteFunc(ordersRoute, s.RequireAuth(s.Orders))
}
