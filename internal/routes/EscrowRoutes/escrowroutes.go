package escrowroutes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nikhil/taskfi/internal/middleware"
	escrowService "github.com/nikhil/taskfi/internal/service/escrow"
)

func EscrowRoutes(router *mux.Router, svc *escrowService.EscrowService) {
	escrowRouter := router.PathPrefix("/escrow").Subrouter()
	escrowRouter.Use(middleware.AuthMiddleware, middleware.ResponseWrapperMiddleware)

	escrowRouter.HandleFunc("/team", svc.InitializeTeam).Methods(http.MethodPost)
	escrowRouter.HandleFunc("/team/{team}", svc.GetTeam).Methods(http.MethodGet)
	escrowRouter.HandleFunc("/team/{team}/deposit", svc.Deposit).Methods(http.MethodPost)
	escrowRouter.HandleFunc("/team/{team}/payout", svc.Payout).Methods(http.MethodPost)

	escrowRouter.HandleFunc("/team/{team}/task", svc.CreateTask).Methods(http.MethodPost)
	escrowRouter.HandleFunc("/team/{team}/task/{task}", svc.GetTask).Methods(http.MethodGet)
	escrowRouter.HandleFunc("/team/{team}/task/{task}/assign", svc.AssignTask).Methods(http.MethodPost)
	escrowRouter.HandleFunc("/team/{team}/task/{task}/complete", svc.MarkComplete).Methods(http.MethodPost)
	escrowRouter.HandleFunc("/team/{team}/task/{task}/payout", svc.PayoutTask).Methods(http.MethodPost)
}
