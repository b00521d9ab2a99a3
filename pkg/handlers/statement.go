package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

type StatementHandler struct {
	ledger Ledger
	logger *zap.Logger
}

func (h *StatementHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountId, err := accountIdFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	statement, err := h.ledger.Statement(r.Context(), accountId)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, statement)
}
