package authRoute

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nikhil/taskfi/internal/middleware"
	authService "github.com/nikhil/taskfi/internal/service/auth"
)

func RegisterAuthRoutes(router *mux.Router, svc *authService.AuthService) {
	// Public routes without auth middleware
	publicRouter := router.PathPrefix("/auth").Subrouter()
	publicRouter.Use(middleware.ResponseWrapperMiddleware)
	publicRouter.HandleFunc("/register", svc.Register).Methods(http.MethodPost)
	publicRouter.HandleFunc("/login", svc.Login).Methods(http.MethodPost)
}
