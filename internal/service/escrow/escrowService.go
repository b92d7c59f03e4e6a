package escrowService

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nikhil/taskfi/internal/escrow"
	"github.com/nikhil/taskfi/internal/events"
	"github.com/nikhil/taskfi/internal/ledger"
	"github.com/nikhil/taskfi/internal/logger"
	"github.com/nikhil/taskfi/internal/middleware"
	"github.com/nikhil/taskfi/internal/models"
)

// EscrowService exposes the engine's operations over HTTP.
type EscrowService struct {
	Engine *escrow.Engine
	Hub    *events.Hub
	Log    *logger.Logger
}

// NewEscrowService wires the engine and the event hub.
func NewEscrowService(engine *escrow.Engine, hub *events.Hub) *EscrowService {
	return &EscrowService{
		Engine: engine,
		Hub:    hub,
		Log:    logger.NewLogger("escrow-service"),
	}
}

// InitializeTeamRequest is the request body for team creation
type InitializeTeamRequest struct {
	TeamID uint64 `json:"team_id"`
}

// DepositRequest is the request body for vault deposits
type DepositRequest struct {
	Amount uint64 `json:"amount"`
}

// PayoutRequest is the request body for direct authority payouts
type PayoutRequest struct {
	Recipient models.Address `json:"recipient"`
	Amount    uint64         `json:"amount"`
}

// CreateTaskRequest is the request body for task creation
type CreateTaskRequest struct {
	TaskID uint64 `json:"task_id"`
	Reward uint64 `json:"reward"`
}

// AssignTaskRequest is the request body for task assignment
type AssignTaskRequest struct {
	Assignee models.Address `json:"assignee"`
}

// PayoutTaskRequest is the request body for task payout
type PayoutTaskRequest struct {
	Recipient models.Address `json:"recipient"`
}

// InitializeTeam handles POST /escrow/team.
func (s *EscrowService) InitializeTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.CallerFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	var req InitializeTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	team, vault, err := s.Engine.InitializeTeam(ctx, caller, req.TeamID)
	if err != nil {
		s.respondWithEscrowError(w, err, "initialize_team")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{
		"team":  team.String(),
		"vault": vault.String(),
	})
}

// GetTeam handles GET /escrow/team/{team}.
func (s *EscrowService) GetTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamAddr, ok := s.pathAddress(w, r, "team")
	if !ok {
		return
	}

	teamRec, vault, balance, err := s.Engine.TeamInfo(ctx, teamAddr)
	if err != nil {
		s.respondWithEscrowError(w, err, "get_team")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"team":          teamRec,
		"vault":         vault.String(),
		"vault_balance": balance,
	})
}

// Deposit handles POST /escrow/team/{team}/deposit.
func (s *EscrowService) Deposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.CallerFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	teamAddr, ok := s.pathAddress(w, r, "team")
	if !ok {
		return
	}

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.Engine.Deposit(ctx, caller, teamAddr, req.Amount); err != nil {
		s.respondWithEscrowError(w, err, "deposit")
		return
	}

	s.Hub.Publish(events.Event{
		Type:   events.TypeDeposit,
		Team:   teamAddr.String(),
		Actor:  caller.String(),
		Amount: req.Amount,
	})
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deposited"})
}

// Payout handles POST /escrow/team/{team}/payout. This is the authority's
// direct release path; it does not consult any task.
func (s *EscrowService) Payout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.CallerFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	teamAddr, ok := s.pathAddress(w, r, "team")
	if !ok {
		return
	}

	var req PayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.Engine.Payout(ctx, caller, teamAddr, req.Recipient, req.Amount); err != nil {
		s.respondWithEscrowError(w, err, "payout")
		return
	}

	s.Hub.Publish(events.Event{
		Type:      events.TypePayout,
		Team:      teamAddr.String(),
		Actor:     caller.String(),
		Recipient: req.Recipient.String(),
		Amount:    req.Amount,
	})
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

// CreateTask handles POST /escrow/team/{team}/task.
func (s *EscrowService) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.CallerFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	teamAddr, ok := s.pathAddress(w, r, "team")
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	taskAddr, err := s.Engine.CreateTask(ctx, caller, teamAddr, req.TaskID, req.Reward)
	if err != nil {
		s.respondWithEscrowError(w, err, "create_task")
		return
	}

	s.Hub.Publish(events.Event{
		Type:   events.TypeTaskCreated,
		Team:   teamAddr.String(),
		Task:   taskAddr.String(),
		Actor:  caller.String(),
		Amount: req.Reward,
	})
	respondWithJSON(w, http.StatusCreated, map[string]string{"task": taskAddr.String()})
}

// GetTask handles GET /escrow/team/{team}/task/{task}.
func (s *EscrowService) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamAddr, ok := s.pathAddress(w, r, "team")
	if !ok {
		return
	}
	taskAddr, ok := s.pathAddress(w, r, "task")
	if !ok {
		return
	}

	task, err := s.Engine.TaskInfo(ctx, teamAddr, taskAddr)
	if err != nil {
		s.respondWithEscrowError(w, err, "get_task")
		return
	}

	respondWithJSON(w, http.StatusOK, task)
}

// AssignTask handles POST /escrow/team/{team}/task/{task}/assign.
func (s *EscrowService) AssignTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.CallerFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	teamAddr, ok := s.pathAddress(w, r, "team")
	if !ok {
		return
	}
	taskAddr, ok := s.pathAddress(w, r, "task")
	if !ok {
		return
	}

	var req AssignTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.Engine.AssignTask(ctx, caller, teamAddr, taskAddr, req.Assignee); err != nil {
		s.respondWithEscrowError(w, err, "assign_task")
		return
	}

	s.Hub.Publish(events.Event{
		Type:      events.TypeTaskAssigned,
		Team:      teamAddr.String(),
		Task:      taskAddr.String(),
		Actor:     caller.String(),
		Recipient: req.Assignee.String(),
	})
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

// MarkComplete handles POST /escrow/team/{team}/task/{task}/complete.
func (s *EscrowService) MarkComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.CallerFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	teamAddr, ok := s.pathAddress(w, r, "team")
	if !ok {
		return
	}
	taskAddr, ok := s.pathAddress(w, r, "task")
	if !ok {
		return
	}

	if err := s.Engine.MarkComplete(ctx, caller, teamAddr, taskAddr); err != nil {
		s.respondWithEscrowError(w, err, "mark_complete")
		return
	}

	s.Hub.Publish(events.Event{
		Type:  events.TypeTaskCompleted,
		Team:  teamAddr.String(),
		Task:  taskAddr.String(),
		Actor: caller.String(),
	})
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// PayoutTask handles POST /escrow/team/{team}/task/{task}/payout.
func (s *EscrowService) PayoutTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.CallerFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	teamAddr, ok := s.pathAddress(w, r, "team")
	if !ok {
		return
	}
	taskAddr, ok := s.pathAddress(w, r, "task")
	if !ok {
		return
	}

	var req PayoutTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.Engine.PayoutTask(ctx, caller, teamAddr, taskAddr, req.Recipient); err != nil {
		s.respondWithEscrowError(w, err, "payout_task")
		return
	}

	s.Hub.Publish(events.Event{
		Type:      events.TypeTaskPaid,
		Team:      teamAddr.String(),
		Task:      taskAddr.String(),
		Actor:     caller.String(),
		Recipient: req.Recipient.String(),
	})
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

// pathAddress parses an address path variable, replying 400 on failure.
func (s *EscrowService) pathAddress(w http.ResponseWriter, r *http.Request, name string) (models.Address, bool) {
	addr, err := models.ParseAddress(mux.Vars(r)[name])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid "+name+" address")
		return models.ZeroAddress, false
	}
	return addr, true
}

// respondWithEscrowError maps engine and ledger errors onto HTTP statuses.
func (s *EscrowService) respondWithEscrowError(w http.ResponseWriter, err error, op string) {
	var code int
	switch {
	case errors.Is(err, escrow.ErrInvalidAmount),
		errors.Is(err, escrow.ErrInvalidAssignee),
		errors.Is(err, escrow.ErrAddressMismatch),
		errors.Is(err, ledger.ErrZeroAddress):
		code = http.StatusBadRequest
	case errors.Is(err, escrow.ErrNotAuthority),
		errors.Is(err, escrow.ErrNotAssignee),
		errors.Is(err, escrow.ErrRecipientNotAssignee):
		code = http.StatusForbidden
	case errors.Is(err, ledger.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyExists),
		errors.Is(err, ledger.ErrRecordModified):
		code = http.StatusConflict
	case errors.Is(err, escrow.ErrInvalidTaskState),
		errors.Is(err, escrow.ErrNoAssignee),
		errors.Is(err, escrow.ErrTaskTeamMismatch),
		errors.Is(err, escrow.ErrInsufficientVaultFunds),
		errors.Is(err, ledger.ErrInsufficientFunds):
		code = http.StatusUnprocessableEntity
	default:
		s.Log.Error("Operation failed", "op", op, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	s.Log.Warn("Operation rejected", "op", op, "error", err)
	respondWithError(w, code, err.Error())
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
