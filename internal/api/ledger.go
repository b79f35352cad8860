package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"payrecorder.mini/prm/internal/types"
)

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, false
	}
	return body, len(body) > 0
}

// @Title: Submit Transaction
// @Route: POST /api/tx
// @Description: Execute a signed record_payment transaction; the signer is the sender
// @Response: {"code": 0, "data": PaymentRecorded}
func (s *Service) HandleSubmitTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp := s.host.DeliverTx(r.Context(), body)
	if !resp.OK() {
		s.logger.Warnf("API: Rejected transaction (code %d): %s", resp.Code, resp.Log)
	}
	s.writeJSON(w, statusFor(resp.Code), resp)
}

// @Title: Check Transaction
// @Route: POST /api/tx/check
// @Description: Validate a signed transaction without executing it
// @Response: {"code": 0}
func (s *Service) HandleCheckTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp := s.host.CheckTx(r.Context(), body)
	s.writeJSON(w, statusFor(resp.Code), resp)
}

// @Title: Get History
// @Route: GET /api/history?account=...
// @Description: Payment history recorded by an account as sender (hex or SS58)
// @Response: Array of PaymentRecord objects, empty when none
func (s *Service) HandleHistory(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		s.writeError(w, http.StatusBadRequest, "Missing 'account' query parameter")
		return
	}

	resp := s.host.Query(r.Context(), "history/"+account)
	if !resp.OK() {
		s.writeError(w, statusFor(resp.Code), resp.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Data)
}

// @Title: Get My History
// @Route: POST /api/history/me
// @Description: Payment history of the signer of a my_history transaction
// @Response: Array of PaymentRecord objects, empty when none
func (s *Service) HandleMyHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Only reads may come through here.
	var stx types.SignedTransaction
	if err := json.Unmarshal(body, &stx); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid signed transaction")
		return
	}
	tx, err := stx.GetTransaction()
	if err != nil || tx.Type != types.TxMyHistory {
		s.writeError(w, http.StatusBadRequest, "Expected a my_history transaction")
		return
	}

	resp := s.host.DeliverTx(r.Context(), body)
	if !resp.OK() {
		s.writeError(w, statusFor(resp.Code), resp.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Data)
}

// @Title: Recent Events
// @Route: GET /api/events/recent?n=...
// @Description: Most recent PaymentRecorded notifications, oldest first
// @Response: Array of Event objects
func (s *Service) HandleRecentEvents(w http.ResponseWriter, r *http.Request) {
	n := 0
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid 'n' query parameter")
			return
		}
		n = parsed
	}
	s.writeJSON(w, http.StatusOK, s.events.Recent(n))
}
