package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/nikhil/taskfi/internal/database"
	"github.com/nikhil/taskfi/internal/escrow"
	"github.com/nikhil/taskfi/internal/events"
	"github.com/nikhil/taskfi/internal/ledger"
	"github.com/nikhil/taskfi/internal/routes"
	authService "github.com/nikhil/taskfi/internal/service/auth"
	escrowService "github.com/nikhil/taskfi/internal/service/escrow"
)

func main() {
	var backend ledger.Ledger
	var wallets authService.WalletStore

	if os.Getenv("LEDGER_BACKEND") == "memory" {
		// Dev mode: no MySQL required, state lives in process.
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found, using environment as-is")
		}
		backend = ledger.NewMemory()
		wallets = authService.NewMemoryWalletStore()
	} else {
		database.InitDB()
		backend = ledger.NewMySQL(database.DB)
		wallets = &authService.SQLWalletStore{DB: database.DB}
	}

	engine := escrow.NewEngine(backend)
	auth := authService.NewAuthService(wallets, backend)
	escrowSvc := escrowService.NewEscrowService(engine, events.GetHub())

	router := routes.RegisterAllRoutes(auth, escrowSvc)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Printf("Server is running on port %s...\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}
