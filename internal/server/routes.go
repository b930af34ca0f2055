package server

import "net/http"

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	logging := LoggingMiddleware(s.log)

	mux.Handle("/health", chain(
		http.HandlerFunc(s.handleHealth),
		logging,
	))

	mux.Handle("/accounts", chain(
		http.HandlerFunc(s.handleAccounts),
		logging,
		TokenMiddleware(s.opts.Token, s.log),
	))

	mux.Handle("/accounts/", chain(
		http.HandlerFunc(s.handleAccount),
		logging,
		TokenMiddleware(s.opts.Token, s.log),
	))

	return mux
}

func chain(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}
