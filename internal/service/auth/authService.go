package authService

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikhil/taskfi/internal/ledger"
	"github.com/nikhil/taskfi/internal/logger"
	"github.com/nikhil/taskfi/internal/models"
)

// defaultFaucet is credited to every new wallet so depositors have funds
// to move. Overridable with FAUCET_AMOUNT.
const defaultFaucet = 1_000_000

var errWalletNotFound = errors.New("wallet not found")

// WalletStore persists wallet credentials keyed by address.
type WalletStore interface {
	Create(ctx context.Context, addr models.Address, passwordHash string) error
	PasswordHash(ctx context.Context, addr models.Address) (string, error)
}

// SQLWalletStore keeps credentials in the wallets table.
type SQLWalletStore struct {
	DB *sql.DB
}

func (s *SQLWalletStore) Create(ctx context.Context, addr models.Address, passwordHash string) error {
	query := `INSERT INTO wallets (address, password_hash, created_at) VALUES (?, ?, ?)`
	_, err := s.DB.ExecContext(ctx, query, addr.String(), passwordHash, time.Now().UTC().Unix())
	return err
}

func (s *SQLWalletStore) PasswordHash(ctx context.Context, addr models.Address) (string, error) {
	var hash string
	query := `SELECT password_hash FROM wallets WHERE address = ?`
	err := s.DB.QueryRowContext(ctx, query, addr.String()).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errWalletNotFound
	}
	return hash, err
}

// MemoryWalletStore backs tests and memory-ledger dev runs.
type MemoryWalletStore struct {
	mu      sync.Mutex
	wallets map[models.Address]string
}

func NewMemoryWalletStore() *MemoryWalletStore {
	return &MemoryWalletStore{wallets: make(map[models.Address]string)}
}

func (s *MemoryWalletStore) Create(_ context.Context, addr models.Address, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[addr] = passwordHash
	return nil
}

func (s *MemoryWalletStore) PasswordHash(_ context.Context, addr models.Address) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.wallets[addr]
	if !ok {
		return "", errWalletNotFound
	}
	return hash, nil
}

// AuthService issues wallets and login tokens.
type AuthService struct {
	Wallets WalletStore
	Ledger  ledger.Ledger
	Log     *logger.Logger
}

// NewAuthService creates a new instance of AuthService
func NewAuthService(wallets WalletStore, l ledger.Ledger) *AuthService {
	return &AuthService{
		Wallets: wallets,
		Ledger:  l,
		Log:     logger.NewLogger("auth-service"),
	}
}

// RegisterRequest is the request body for wallet creation
type RegisterRequest struct {
	Password string `json:"password"`
}

// LoginRequest is the request body for login
type LoginRequest struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

// Register creates a wallet: a fresh ledger address, a bcrypt credential,
// and a faucet balance to play with.
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Password is required")
		return
	}

	addr, err := models.NewWalletAddress()
	if err != nil {
		s.Log.Error("Failed to generate wallet address", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create wallet")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.Log.Error("Failed to hash password", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create wallet")
		return
	}
	if err := s.Wallets.Create(ctx, addr, string(hash)); err != nil {
		s.Log.Error("Failed to store wallet", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create wallet")
		return
	}

	faucet := uint64(defaultFaucet)
	if env := os.Getenv("FAUCET_AMOUNT"); env != "" {
		if parsed, err := strconv.ParseUint(env, 10, 64); err == nil {
			faucet = parsed
		}
	}
	if faucet > 0 {
		if err := s.Ledger.Credit(ctx, addr, faucet); err != nil {
			s.Log.Error("Failed to fund wallet", "error", err, "address", addr.String())
			respondWithError(w, http.StatusInternalServerError, "Failed to fund wallet")
			return
		}
	}

	s.Log.Info("Wallet registered", "address", addr.String(), "faucet", faucet)
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"address": addr.String(),
		"balance": faucet,
	})
}

// Login authenticates a wallet and returns a bearer token.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	addr, err := models.ParseAddress(req.Address)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid address")
		return
	}

	hash, err := s.Wallets.PasswordHash(ctx, addr)
	if err != nil {
		if errors.Is(err, errWalletNotFound) {
			respondWithError(w, http.StatusUnauthorized, "Unknown wallet")
		} else {
			s.Log.Error("Failed to load wallet", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		respondWithError(w, http.StatusUnauthorized, "Wrong password")
		return
	}

	token, err := s.GenerateJWT(addr)
	if err != nil {
		s.Log.Error("Failed to sign token", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"token":   token,
		"address": addr.String(),
	})
}

// GenerateJWT creates a bearer token whose subject is the wallet address.
func (s *AuthService) GenerateJWT(addr models.Address) (string, error) {
	secretKey := os.Getenv("JWT_SECRET")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": addr.String(),
		"exp": time.Now().Add(time.Hour * 24).Unix(),
	})

	return token.SignedString([]byte(secretKey))
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
