package routes

import (
	"github.com/gorilla/mux"

	authRoute "github.com/nikhil/taskfi/internal/routes/Auth"
	escrowroutes "github.com/nikhil/taskfi/internal/routes/EscrowRoutes"
	authService "github.com/nikhil/taskfi/internal/service/auth"
	escrowService "github.com/nikhil/taskfi/internal/service/escrow"
)

// Register all routes for the constructed services
func RegisterAllRoutes(auth *authService.AuthService, escrow *escrowService.EscrowService) *mux.Router {
	router := mux.NewRouter()

	authRoute.RegisterAuthRoutes(router, auth)
	escrowroutes.EscrowRoutes(router, escrow)
	RegisterWebSocketRoutes(router)

	return router
}
