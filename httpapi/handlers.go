package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"splitpay/auth"
	"splitpay/domain"
	"splitpay/domain/entities"
	"splitpay/domain/services"
)

const defaultListLimit = 50

// Server holds the handler dependencies. Handlers stay thin: decode, call
// the domain service, encode.
type Server struct {
	gate        *auth.Gate
	sessions    *auth.SessionManager
	expenses    *services.ExpenseService
	ledger      *services.LedgerService
	settlements *services.SettlementService
	splits      *services.SplitService
}

// NewServer creates a new HTTP server
func NewServer(gate *auth.Gate, sessions *auth.SessionManager, expenses *services.ExpenseService, ledger *services.LedgerService, settlements *services.SettlementService) *Server {
	return &Server{
		gate:        gate,
		sessions:    sessions,
		expenses:    expenses,
		ledger:      ledger,
		settlements: settlements,
		splits:      services.NewSplitService(),
	}
}

type createSessionRequest struct {
	Credential string `json:"credential"`
}

type sessionResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrUnauthenticated)
		return
	}

	user, err := s.gate.Provision(r.Context(), req.Credential)
	if err != nil {
		respondError(w, err)
		return
	}

	token, err := s.sessions.Issue(user.ID, user.ExternalID)
	if err != nil {
		respondError(w, err)
		return
	}

	var resp sessionResponse
	resp.Token = token
	resp.User.ID = user.ID
	resp.User.Username = user.Username
	respondJSON(w, http.StatusCreated, resp)
}

type logoutRequest struct {
	Credential string `json:"credential"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrUnauthenticated)
		return
	}

	if err := s.gate.Logout(r.Context(), req.Credential); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type createExpenseRequest struct {
	Title    string `json:"title"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Category string `json:"category"`
	// Participants requests an even split; Shares gives explicit amounts.
	// Exactly one of the two should be set.
	Participants []int64        `json:"participants,omitempty"`
	Shares       []shareRequest `json:"shares,omitempty"`
}

type shareRequest struct {
	ParticipantID int64 `json:"participant_id"`
	Amount        int64 `json:"amount"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	claims, _ := sessionFromContext(r.Context())

	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrInvalidSplit)
		return
	}

	var shares []services.Share
	switch {
	case len(req.Shares) > 0:
		for _, share := range req.Shares {
			shares = append(shares, services.Share{ParticipantID: share.ParticipantID, Amount: share.Amount})
		}
	case len(req.Participants) > 0:
		even, err := s.splits.EvenShares(req.Amount, req.Participants)
		if err != nil {
			respondError(w, err)
			return
		}
		shares = even
	default:
		respondError(w, domain.ErrInvalidSplit)
		return
	}

	expense, err := s.expenses.RecordExpense(r.Context(), claims.UserID, req.Title, req.Amount, req.Currency, req.Category, shares)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, expenseResponse(expense))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, domain.ErrNotFound)
		return
	}

	expense, err := s.expenses.GetExpense(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, expenseResponse(expense))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	claims, _ := sessionFromContext(r.Context())

	expenses, err := s.expenses.ListExpenses(r.Context(), claims.UserID, listLimit(r))
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]map[string]any, 0, len(expenses))
	for _, expense := range expenses {
		resp = append(resp, expenseResponse(expense))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	claims, _ := sessionFromContext(r.Context())

	balance, err := s.ledger.GetUserBalance(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	pairwise := make([]map[string]any, 0, len(balance.Pairwise))
	for _, pair := range balance.Pairwise {
		pairwise = append(pairwise, map[string]any{
			"counterparty_id": pair.CounterpartyID,
			"amount":          pair.Amount,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":     balance.UserID,
		"total_owing": balance.TotalOwing,
		"total_owed":  balance.TotalOwed,
		"net":         balance.Net,
		"pairwise":    pairwise,
	})
}

func (s *Server) handleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	transfers, err := s.ledger.SuggestTransfers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]map[string]any, 0, len(transfers))
	for _, transfer := range transfers {
		resp = append(resp, map[string]any{
			"from_user_id": transfer.FromUserID,
			"to_user_id":   transfer.ToUserID,
			"amount":       transfer.Amount,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

type createSettlementRequest struct {
	ToUserID        *int64  `json:"to_user_id,omitempty"`
	ExternalAddress *string `json:"external_address,omitempty"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
	Category        string  `json:"category"`
	Note            string  `json:"note"`
	Simulated       bool    `json:"simulated"`
}

func (s *Server) handleCreateSettlement(w http.ResponseWriter, r *http.Request) {
	claims, _ := sessionFromContext(r.Context())

	var req createSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrInvalidAmount)
		return
	}

	meta := services.SettlementMetadata{Category: req.Category, Note: req.Note}

	var settlement *entities.Settlement
	var err error
	if req.Simulated {
		settlement, err = s.settlements.RecordSimulated(r.Context(), claims.UserID, req.ToUserID, req.ExternalAddress, req.Amount, req.Currency, meta)
	} else {
		settlement, err = s.settlements.Create(r.Context(), claims.UserID, req.ToUserID, req.ExternalAddress, req.Amount, req.Currency, meta)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, settlementResponse(settlement))
}

func (s *Server) handleApproveSettlement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, domain.ErrNotFound)
		return
	}

	settlement, err := s.settlements.RequestApproval(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settlementResponse(settlement))
}

type completeSettlementRequest struct {
	ExternalTxID string `json:"external_tx_id"`
	Amount       int64  `json:"amount"`
	ToUserID     *int64 `json:"to_user_id,omitempty"`
}

func (s *Server) handleCompleteSettlement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, domain.ErrNotFound)
		return
	}

	var req completeSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrInvalidAmount)
		return
	}

	settlement, err := s.settlements.ConfirmCompletion(r.Context(), id, req.ExternalTxID, req.Amount, req.ToUserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settlementResponse(settlement))
}

func (s *Server) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, domain.ErrNotFound)
		return
	}

	settlement, err := s.settlements.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settlementResponse(settlement))
}

func (s *Server) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	claims, _ := sessionFromContext(r.Context())

	settlements, err := s.settlements.ListForUser(r.Context(), claims.UserID, listLimit(r))
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]map[string]any, 0, len(settlements))
	for _, settlement := range settlements {
		resp = append(resp, settlementResponse(settlement))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	claims, _ := sessionFromContext(r.Context())

	activities, err := s.ledger.ListActivities(r.Context(), claims.UserID, listLimit(r))
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]map[string]any, 0, len(activities))
	for _, activity := range activities {
		resp = append(resp, map[string]any{
			"id":         activity.ID,
			"action":     activity.Action,
			"ref_type":   activity.RefType,
			"ref_id":     activity.RefID,
			"metadata":   activity.Metadata,
			"created_at": activity.CreatedAt.Format(time.RFC3339),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func expenseResponse(expense *entities.ExpenseWithSplits) map[string]any {
	splits := make([]map[string]any, 0, len(expense.Splits))
	for _, split := range expense.Splits {
		splits = append(splits, map[string]any{
			"participant_id": split.ParticipantID,
			"amount":         split.Amount,
			"status":         split.Status,
		})
	}
	return map[string]any{
		"id":         expense.Expense.ID,
		"payer_id":   expense.Expense.PayerID,
		"title":      expense.Expense.Title,
		"amount":     expense.Expense.Amount,
		"currency":   expense.Expense.Currency,
		"category":   expense.Expense.Category,
		"created_at": expense.Expense.CreatedAt.Format(time.RFC3339),
		"splits":     splits,
	}
}

func settlementResponse(settlement *entities.Settlement) map[string]any {
	resp := map[string]any{
		"id":           settlement.ID,
		"from_user_id": settlement.FromUserID,
		"amount":       settlement.Amount,
		"currency":     settlement.Currency,
		"status":       settlement.Status,
		"transfer_ref": settlement.TransferRef,
		"category":     settlement.Category,
		"note":         settlement.Note,
		"simulated":    settlement.Simulated,
		"created_at":   settlement.CreatedAt.Format(time.RFC3339),
	}
	if settlement.ToUserID != nil {
		resp["to_user_id"] = *settlement.ToUserID
	}
	if settlement.ExternalAddress != nil {
		resp["external_address"] = *settlement.ExternalAddress
	}
	if settlement.ExternalTxID != nil {
		resp["external_tx_id"] = *settlement.ExternalTxID
	}
	if settlement.Reason != nil {
		resp["reason"] = *settlement.Reason
	}
	if settlement.CompletedAt != nil {
		resp["completed_at"] = settlement.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func listLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 500 {
			return limit
		}
	}
	return defaultListLimit
}
