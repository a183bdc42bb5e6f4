package main

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/shopspring/decimal"
)

func (s *Server) balanceHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r); !ok {
		return
	}
	bal, err := s.ledger.Balance(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": bal})
}

func (s *Server) getSettingsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r); !ok {
		return
	}
	settings, err := s.ledger.Settings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) updateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, adminRoles...); !ok {
		return
	}
	var settings models.Settings
	if err := decode(r, &settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ledger.SaveSettings(r.Context(), &settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.require(w, r, staffRoles...)
	if !ok {
		return
	}
	var req struct {
		models.User
		FCMToken string `json:"fcm_token"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user := req.User
	user.ID = 0
	// only admins hand out staff roles
	if user.Role != "" && user.Role != models.RoleMember && !caller.HasRole(adminRoles...) {
		s.writeError(w, r, models.ErrAccessDenied)
		return
	}
	user.FCMToken = req.FCMToken
	if err := s.ledger.CreateUser(r.Context(), &user); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) createMembershipHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, staffRoles...); !ok {
		return
	}
	var m models.Membership
	if err := decode(r, &m); err != nil {
		s.writeError(w, r, err)
		return
	}
	m.ID = 0
	if err := s.ledger.CreateMembership(r.Context(), &m); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) assignMembershipHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, staffRoles...); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	mu, err := s.ledger.AssignMembership(r.Context(), id, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mu)
}

// saveDepositHandler serves both create (POST) and full update (PUT /{id}).
func (s *Server) saveDepositHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, staffRoles...); !ok {
		return
	}
	var d models.Deposit
	if err := decode(r, &d); err != nil {
		s.writeError(w, r, err)
		return
	}
	status, ok := s.entityID(w, r, &d.ID)
	if !ok {
		return
	}
	if err := s.ledger.SaveDeposit(r.Context(), &d); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, d)
}

func (s *Server) deleteDepositHandler(w http.ResponseWriter, r *http.Request) {
	s.deleteEntity(w, r, staffRoles, s.ledger.DeleteDeposit)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.require(w, r)
	if !ok {
		return
	}
	var loan models.Loan
	if err := decode(r, &loan); err != nil {
		s.writeError(w, r, err)
		return
	}
	loan.ID = 0
	if !caller.IsStaff() {
		loan.UserID = caller.UserID
		loan.Status = models.LoanStatusPending
		loan.ActionBy = nil
	}
	if err := s.ledger.CreateLoan(r.Context(), &loan); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

type loanView struct {
	*models.Loan
	RemainingPrincipal decimal.Decimal `json:"remaining_principal"`
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.require(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loan, err := s.ledger.GetLoan(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !caller.IsStaff() && loan.UserID != caller.UserID {
		s.writeError(w, r, models.ErrAccessDenied)
		return
	}
	remaining, err := s.ledger.RemainingPrincipal(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loanView{Loan: loan, RemainingPrincipal: remaining})
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, staffRoles...); !ok {
		return
	}
	var loan models.Loan
	if err := decode(r, &loan); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, ok := s.entityID(w, r, &loan.ID); !ok {
		return
	}
	if err := s.ledger.UpdateLoan(r.Context(), &loan); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) loanStatusHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.require(w, r, boardRoles...)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Status models.LoanStatus `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var loan *models.Loan
	switch req.Status {
	case models.LoanStatusApproved:
		loan, err = s.ledger.ApproveLoan(r.Context(), id, caller.UserID)
	case models.LoanStatusRejected:
		loan, err = s.ledger.RejectLoan(r.Context(), id, caller.UserID)
	default:
		loan, err = s.ledger.SetLoanStatus(r.Context(), id, req.Status, caller.UserID)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	s.deleteEntity(w, r, adminRoles, s.ledger.DeleteLoan)
}

// saveInterestPaymentHandler creates under /loans/{id} or updates /interest-payments/{id}.
func (s *Server) saveInterestPaymentHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, staffRoles...); !ok {
		return
	}
	var p models.InterestPayment
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	status, ok := s.childID(w, r, &p.ID, &p.LoanID)
	if !ok {
		return
	}
	if err := s.ledger.SaveInterestPayment(r.Context(), &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, p)
}

func (s *Server) deleteInterestPaymentHandler(w http.ResponseWriter, r *http.Request) {
	s.deleteEntity(w, r, staffRoles, s.ledger.DeleteInterestPayment)
}

func (s *Server) savePrincipalPaymentHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, staffRoles...); !ok {
		return
	}
	var p models.PrincipalPayment
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	status, ok := s.childID(w, r, &p.ID, &p.LoanID)
	if !ok {
		return
	}
	if err := s.ledger.SavePrincipalPayment(r.Context(), &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, p)
}

func (s *Server) deletePrincipalPaymentHandler(w http.ResponseWriter, r *http.Request) {
	s.deleteEntity(w, r, staffRoles, s.ledger.DeletePrincipalPayment)
}

func (s *Server) saveFundHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, boardRoles...); !ok {
		return
	}
	var f models.FundManagement
	if err := decode(r, &f); err != nil {
		s.writeError(w, r, err)
		return
	}
	status, ok := s.entityID(w, r, &f.ID)
	if !ok {
		return
	}
	if err := s.ledger.SaveFund(r.Context(), &f); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, f)
}

func (s *Server) deleteFundHandler(w http.ResponseWriter, r *http.Request) {
	s.deleteEntity(w, r, boardRoles, s.ledger.DeleteFund)
}

func (s *Server) payPenaltyHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, staffRoles...); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.ledger.PayPenalty(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.require(w, r)
	if !ok {
		return
	}
	var req struct {
		PaymentType string          `json:"payment_type"`
		PaymentID   uint            `json:"payment_id"`
		Amount      decimal.Decimal `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ref := models.PaymentRef{Type: models.PaymentType(req.PaymentType), ID: req.PaymentID}
	res, err := s.checkout.CreateOrder(r.Context(), caller.UserID, ref, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"transaction_id": res.Transaction.ID,
		"client_txn_id":  res.Transaction.ClientTxnID,
		"order_id":       res.Transaction.OrderID,
		"payment_url":    res.PaymentURL,
		"upi_intent":     res.UPIIntent,
	})
}

func (s *Server) paymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.require(w, r)
	if !ok {
		return
	}
	var req struct {
		ClientTxnID string `json:"client_txn_id"`
		TxnDate     string `json:"txn_date"` // DD-MM-YYYY
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ClientTxnID == "" {
		s.writeError(w, r, models.NewValidationError("client_txn_id", "is required"))
		return
	}
	var txnDate time.Time
	if req.TxnDate != "" {
		d, err := time.Parse("02-01-2006", req.TxnDate)
		if err != nil {
			s.writeError(w, r, models.NewValidationError("txn_date", "must be DD-MM-YYYY"))
			return
		}
		txnDate = d
	}

	res, err := s.checkout.CheckStatus(r.Context(), caller.UserID, req.ClientTxnID, txnDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             res.GatewayStatus,
		"transaction_status": res.Transaction.Status,
		"order_id":           res.Transaction.OrderID,
		"upi_txn_id":         res.UPITxnID,
		"amount":             res.Amount,
	})
}

// paymentCallbackHandler is where the gateway redirects the payer. It answers with a small HTML page.
func (s *Server) paymentCallbackHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("client_txn_id")
	if id == "" {
		id = r.PostFormValue("client_txn_id")
	}
	if id == "" {
		callbackPage(w, http.StatusBadRequest, "Payment Error", "Invalid callback parameters.")
		return
	}

	res, err := s.checkout.Callback(r.Context(), id)
	switch {
	case err == nil && res.Transaction.Status == models.TransactionStatusSuccess:
		callbackPage(w, http.StatusOK, "Payment Successful", "Transaction "+id+" completed. You can return to the app.")
	case err == nil:
		callbackPage(w, http.StatusOK, "Payment "+string(res.Transaction.Status), "Transaction "+id+" is not complete yet.")
	default:
		s.writeError(w, r, err)
	}
}

func callbackPage(w http.ResponseWriter, status int, title, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>",
		html.EscapeString(title), html.EscapeString(title), html.EscapeString(msg))
}

// entityID fills *id from the path on PUT and clears it on POST, returning the status to answer with.
func (s *Server) entityID(w http.ResponseWriter, r *http.Request, id *uint) (int, bool) {
	if r.Method == http.MethodPost {
		*id = 0
		return http.StatusCreated, true
	}
	v, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return 0, false
	}
	*id = v
	return http.StatusOK, true
}

// childID is entityID for loan payments: POST /loans/{id}/... names the loan, PUT names the payment.
func (s *Server) childID(w http.ResponseWriter, r *http.Request, id, loanID *uint) (int, bool) {
	v, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return 0, false
	}
	if r.Method == http.MethodPost {
		*id, *loanID = 0, v
		return http.StatusCreated, true
	}
	*id = v
	return http.StatusOK, true
}

func (s *Server) deleteEntity(w http.ResponseWriter, r *http.Request, roles []string, del func(ctx context.Context, id uint) error) {
	if _, ok := s.require(w, r, roles...); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := del(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
