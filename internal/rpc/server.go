package rpc

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"champ/internal/auth"
)

// Server hosts the chi-routed HTTP facade over an AccountService and
// AdminService. Auth is optional: a nil Verifier runs the facade
// unauthenticated, which `cmd/champd` does whenever no token-signing
// keypair is present on disk.
type Server struct {
	router  chi.Router
	account AccountService
	admin   AdminService
}

// NewServer builds a Server and registers its routes. If verifier is
// non-nil, every route requires a valid bearer token.
func NewServer(account AccountService, admin AdminService, verifier auth.Verifier) *Server {
	s := &Server{router: chi.NewRouter(), account: account, admin: admin}
	s.router.Use(loggingMiddleware)
	if verifier != nil {
		s.router.Use(authMiddleware(verifier))
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Route("/api/account", func(r chi.Router) {
		r.Get("/balance", s.handleGetBalance)
		r.Get("/block", s.handleGetBlockByID)
		r.Get("/latest_block", s.handleGetLatestBlock)
		r.Get("/blocks", s.handleGetBlocks)
		r.Get("/transaction", s.handleGetTransactionByID)
		r.Get("/unclaimed", s.handleGetUnclaimedTransactions)
		r.Get("/voting_power", s.handleGetVotingPower)
		r.Get("/delegate", s.handleGetDelegate)
		r.Post("/submit_block", s.handleSubmitBlock)
	})
	s.router.Route("/api/admin", func(r chi.Router) {
		r.Get("/version", s.handleGetVersion)
		r.Get("/block_pool_size", s.handleGetBlockPoolSize)
		r.Get("/node_name", s.handleGetNodeName)
		r.Post("/node_name", s.handleSetNodeName)
	})
}
