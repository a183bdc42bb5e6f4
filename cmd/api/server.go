package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/coopledger/pkg/auth"
	"github.com/mcclellann/coopledger/pkg/checkout"
	"github.com/mcclellann/coopledger/pkg/config"
	"github.com/mcclellann/coopledger/pkg/gateway"
	"github.com/mcclellann/coopledger/pkg/ledger"
	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
)

// Server holds the ledger and the services the handlers call.
type Server struct {
	ledger     *ledger.Ledger
	storage    store.Storage
	checkout   *checkout.Service
	jwt        config.JWTConfig
	production bool
}

func NewServer(l *ledger.Ledger, co *checkout.Service, jwtCfg config.JWTConfig, production bool) *Server {
	return &Server{
		ledger:     l,
		storage:    l.Storage(),
		checkout:   co,
		jwt:        jwtCfg,
		production: production,
	}
}

var (
	staffRoles = []string{models.RoleAdmin, models.RoleBoard, models.RoleStaff}
	boardRoles = []string{models.RoleAdmin, models.RoleBoard}
	adminRoles = []string{models.RoleAdmin}
)

func (s *Server) Routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestID)

	router.HandleFunc("/payments/callback", s.paymentCallbackHandler).Methods("GET", "POST")

	api := router.NewRoute().Subrouter()
	api.Use(auth.Required(s.jwt))

	api.HandleFunc("/balance", s.balanceHandler).Methods("GET")
	api.HandleFunc("/settings", s.getSettingsHandler).Methods("GET")
	api.HandleFunc("/settings", s.updateSettingsHandler).Methods("PUT")

	api.HandleFunc("/users", s.createUserHandler).Methods("POST")
	api.HandleFunc("/memberships", s.createMembershipHandler).Methods("POST")
	api.HandleFunc("/memberships/{id}/users", s.assignMembershipHandler).Methods("POST")

	api.HandleFunc("/deposits", s.saveDepositHandler).Methods("POST")
	api.HandleFunc("/deposits/{id}", s.saveDepositHandler).Methods("PUT")
	api.HandleFunc("/deposits/{id}", s.deleteDepositHandler).Methods("DELETE")

	api.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	api.HandleFunc("/loans/{id}", s.updateLoanHandler).Methods("PUT")
	api.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	api.HandleFunc("/loans/{id}/status", s.loanStatusHandler).Methods("POST")

	api.HandleFunc("/loans/{id}/interest-payments", s.saveInterestPaymentHandler).Methods("POST")
	api.HandleFunc("/interest-payments/{id}", s.saveInterestPaymentHandler).Methods("PUT")
	api.HandleFunc("/interest-payments/{id}", s.deleteInterestPaymentHandler).Methods("DELETE")
	api.HandleFunc("/loans/{id}/principal-payments", s.savePrincipalPaymentHandler).Methods("POST")
	api.HandleFunc("/principal-payments/{id}", s.savePrincipalPaymentHandler).Methods("PUT")
	api.HandleFunc("/principal-payments/{id}", s.deletePrincipalPaymentHandler).Methods("DELETE")

	api.HandleFunc("/funds", s.saveFundHandler).Methods("POST")
	api.HandleFunc("/funds/{id}", s.saveFundHandler).Methods("PUT")
	api.HandleFunc("/funds/{id}", s.deleteFundHandler).Methods("DELETE")

	api.HandleFunc("/penalties/{id}/pay", s.payPenaltyHandler).Methods("POST")

	api.HandleFunc("/payments/orders", s.createOrderHandler).Methods("POST")
	api.HandleFunc("/payments/status", s.paymentStatusHandler).Methods("POST")

	return router
}

// requestID tags every request with an X-Request-ID, keeping one sent by the client.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[api] %s %s %s (%s)", id, r.Method, r.URL.Path, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP responses. Unexpected errors are
// logged and only described to the client outside production.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": ve.Fields})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, models.ErrAccessDenied):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
	case errors.Is(err, models.ErrDuplicate), errors.Is(err, models.ErrAlreadyPaid), errors.Is(err, models.ErrInvalidStatus):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, gateway.ErrGateway):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment gateway unavailable"})
	default:
		log.Printf("[api] %s %s: %v", r.Method, r.URL.Path, err)
		body := map[string]string{"error": "something went wrong, please try again"}
		if !s.production {
			body["detail"] = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, body)
	}
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.NewValidationError("body", "must be valid JSON")
	}
	return nil
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewValidationError("id", "must be a positive integer")
	}
	return uint(id), nil
}

// require returns the caller when it holds one of roles, otherwise answers 403.
func (s *Server) require(w http.ResponseWriter, r *http.Request, roles ...string) (auth.Caller, bool) {
	caller, ok := auth.FromContext(r.Context())
	if !ok || (len(roles) > 0 && !caller.HasRole(roles...)) {
		s.writeError(w, r, models.ErrAccessDenied)
		return caller, false
	}
	return caller, true
}
