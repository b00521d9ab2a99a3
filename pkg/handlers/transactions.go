package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/andrenbrandao/ledger/pkg/domain"
)

const maxBodyBytes = 1 << 16

type transactionRequestPayload struct {
	Value       int64                  `json:"value"`
	Kind        domain.TransactionKind `json:"kind"`
	Description string                 `json:"description"`
}

type TransactionHandler struct {
	ledger Ledger
	logger *zap.Logger
}

func (h *TransactionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountId, err := accountIdFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var payload transactionRequestPayload
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		// Unknown kinds, fractional values and malformed JSON all land here.
		writeError(w, r, h.logger, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
		return
	}

	balance, err := h.ledger.Apply(r.Context(), accountId, domain.TransactionRequest{
		Value:       payload.Value,
		Type:        payload.Kind,
		Description: payload.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, balance)
}

// accountIdFrom parses the {id} path segment. Ids that are not integers
// cannot name an account, so they are reported as not found.
func accountIdFrom(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrNotFound, r.PathValue("id"))
	}
	return id, nil
}
