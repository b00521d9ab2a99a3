package handlers

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/andrenbrandao/ledger/pkg/domain"
)

// Ledger is the transaction core consumed by the handlers.
type Ledger interface {
	Apply(ctx context.Context, accountId int, req domain.TransactionRequest) (domain.Balance, error)
	Statement(ctx context.Context, accountId int) (domain.Statement, error)
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter wires the HTTP surface. Every request runs on its own goroutine;
// the only coupling between requests is the store.
func NewRouter(ledger Ledger, store Pinger, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /accounts/{id}/transactions", &TransactionHandler{ledger: ledger, logger: logger})
	mux.Handle("GET /accounts/{id}/statement", &StatementHandler{ledger: ledger, logger: logger})
	mux.Handle("GET /health", &HealthHandler{store: store})

	var handler http.Handler = mux
	handler = Logging(logger, handler)
	handler = RequestID(handler)
	return otelhttp.NewHandler(handler, "ledger")
}
