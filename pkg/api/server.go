// Package api is an in-process stub of the exchange operator backend. It
// serves the balance/allowance endpoints and the subscription stream the
// pkg/balances client talks to, for tests and local development against a
// devnet without a real operator.
package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Server is the devnet stub. Balances and allowances live in memory;
// allowance updates confirm after a short delay and show up on the event
// stream like real on-chain confirmations.
type Server struct {
	router *mux.Router
	hub    *Hub

	mu         sync.RWMutex
	block      uint64
	tokens     map[common.Address]string // token address -> symbol
	balances   map[common.Address]map[string]*big.Int
	allowances map[common.Address]map[string]*big.Int

	// ConfirmDelay is how long an allowance update stays unconfirmed.
	ConfirmDelay time.Duration
}

func NewServer() *Server {
	s := &Server{
		router:       mux.NewRouter(),
		hub:          NewHub(),
		block:        1,
		tokens:       make(map[common.Address]string),
		balances:     make(map[common.Address]map[string]*big.Int),
		allowances:   make(map[common.Address]map[string]*big.Int),
		ConfirmDelay: 25 * time.Millisecond,
	}
	s.setupRoutes()
	go s.hub.Run()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/accounts/{address}/balances/eth", s.handleGetEtherBalance).Methods("GET")
	api.HandleFunc("/accounts/{address}/balances", s.handleGetBalances).Methods("GET")
	api.HandleFunc("/accounts/{address}/allowances", s.handleGetAllowances).Methods("GET")
	api.HandleFunc("/chain/block", s.handleGetBlock).Methods("GET")
	api.HandleFunc("/allowances", s.handleUpdateAllowance).Methods("POST")

	s.router.HandleFunc("/ws", s.hub.handleWebSocket)
}

// Handler returns the full HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return cors.Default().Handler(s.router)
}

// RegisterToken maps a token contract address to its symbol.
func (s *Server) RegisterToken(addr common.Address, symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[addr] = symbol
}

// SetBalance seeds a balance and broadcasts the matching event.
func (s *Server) SetBalance(account common.Address, symbol string, value *big.Int) {
	s.mu.Lock()
	if s.balances[account] == nil {
		s.balances[account] = make(map[string]*big.Int)
	}
	s.balances[account][symbol] = value
	s.mu.Unlock()

	s.hub.BroadcastToChannel(ChannelBalances, WSEvent{Type: EventBalance, Symbol: symbol, Value: value.String()})
}

// SetAllowance seeds an allowance and broadcasts the matching event.
func (s *Server) SetAllowance(account common.Address, symbol string, value *big.Int) {
	s.setAllowance(account, symbol, value)
	s.hub.BroadcastToChannel(ChannelAllowances, WSEvent{Type: EventAllowance, Symbol: symbol, Value: value.String()})
}

func (s *Server) setAllowance(account common.Address, symbol string, value *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allowances[account] == nil {
		s.allowances[account] = make(map[string]*big.Int)
	}
	s.allowances[account][symbol] = value
}

// SetBlock sets the reported chain head.
func (s *Server) SetBlock(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = n
}

func (s *Server) handleGetEtherBalance(w http.ResponseWriter, r *http.Request) {
	account := common.HexToAddress(mux.Vars(r)["address"])

	s.mu.RLock()
	value := big.NewInt(0)
	if v, ok := s.balances[account]["ETH"]; ok {
		value = v
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, BalanceEntry{Symbol: "ETH", Value: value.String()})
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	account := common.HexToAddress(mux.Vars(r)["address"])

	s.mu.RLock()
	resp := BalancesResponse{Balances: []BalanceEntry{}}
	for symbol, value := range s.balances[account] {
		if symbol == "ETH" {
			continue
		}
		resp.Balances = append(resp.Balances, BalanceEntry{Symbol: symbol, Value: value.String()})
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAllowances(w http.ResponseWriter, r *http.Request) {
	account := common.HexToAddress(mux.Vars(r)["address"])

	s.mu.RLock()
	resp := AllowancesResponse{Allowances: []BalanceEntry{}}
	for symbol, value := range s.allowances[account] {
		resp.Allowances = append(resp.Allowances, BalanceEntry{Symbol: symbol, Value: value.String()})
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	block := s.block
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, BlockResponse{Number: block})
}

func (s *Server) handleUpdateAllowance(w http.ResponseWriter, r *http.Request) {
	var req AllowanceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	value, ok := new(big.Int).SetString(req.Value, 10)
	if !ok || value.Sign() < 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid allowance value"})
		return
	}

	token := common.HexToAddress(req.Token)
	account := common.HexToAddress(req.Account)

	s.mu.RLock()
	symbol, known := s.tokens[token]
	s.mu.RUnlock()
	if !known {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unknown token"})
		return
	}

	txID := uuid.NewString()

	// Confirm asynchronously: apply the allowance, then publish the tx
	// confirmation and the new allowance value on the event stream.
	go func() {
		time.Sleep(s.ConfirmDelay)
		s.setAllowance(account, symbol, value)
		s.hub.BroadcastToChannel(ChannelAllowances, WSEvent{Type: EventAllowanceTx, TxID: txID, Confirmed: true})
		s.hub.BroadcastToChannel(ChannelAllowances, WSEvent{Type: EventAllowance, Symbol: symbol, Value: value.String()})
	}()

	writeJSON(w, http.StatusOK, AllowanceUpdateResponse{TxID: txID})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
