// Package gatewaymock simulates the upstream payment gateway for tests and local runs.
package gatewaymock

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"blackcat-storefront/internal/gateway"
	"blackcat-storefront/internal/payload"
	"github.com/google/uuid"
)

const (
	StatusPending = "PENDING"
	StatusPaid    = "PAID"

	// RejectedDocument is refused with 422, for exercising upstream failures.
	RejectedDocument = "00000000000"
)

type errorResponse struct {
	Message string `json:"message"`
}

type Sale struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	PixCode       string `json:"pixCode"`
}

// Call is a request as received by the mock.
type Call struct {
	Method string
	Path   string
	APIKey string
	Body   []byte
}

type saleResponse struct {
	Success bool `json:"success"`
	Data    Sale `json:"data"`
}

// Mock is an in-memory stand-in for the gateway. A sale turns PAID after PaidAfter status polls.
type Mock struct {
	APIKey    string
	PaidAfter int

	mu     sync.Mutex
	sales  map[string]*Sale
	polls  map[string]int
	calls  []Call
	logger *slog.Logger
}

func New(apiKey string, logger *slog.Logger) *Mock {
	return &Mock{
		APIKey:    apiKey,
		PaidAfter: 3,
		sales:     make(map[string]*Sale),
		polls:     make(map[string]int),
		logger:    logger,
	}
}

func (m *Mock) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sales/create-sale", m.createSale)
	mux.HandleFunc("GET /sales/{id}/status", m.saleStatus)
	return m.loggingMiddleware(m.authMiddleware(mux))
}

func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// LastSale returns the most recent create-sale payload.
func (m *Mock) LastSale() (payload.Sale, bool) {
	calls := m.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method != http.MethodPost {
			continue
		}
		var sale payload.Sale
		if err := json.Unmarshal(calls[i].Body, &sale); err == nil {
			return sale, true
		}
	}
	return payload.Sale{}, false
}

func (m *Mock) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(gateway.APIKeyHeader) != m.APIKey {
			m.writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Mock) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			m.logger.Error("Error reading request body", "error", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		m.mu.Lock()
		m.calls = append(m.calls, Call{
			Method: r.Method,
			Path:   r.URL.Path,
			APIKey: r.Header.Get(gateway.APIKeyHeader),
			Body:   body,
		})
		m.mu.Unlock()

		m.logger.Info("Gateway mock request", "method", r.Method, "path", r.URL.Path, "body", string(body))
		next.ServeHTTP(w, r)
	})
}

func (m *Mock) createSale(w http.ResponseWriter, r *http.Request) {
	var sale payload.Sale
	if err := json.NewDecoder(r.Body).Decode(&sale); err != nil {
		m.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid body"})
		return
	}

	if sale.Customer.Document.Number == RejectedDocument || len(sale.Customer.Document.Number) != 11 {
		m.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: "invalid document"})
		return
	}

	created := &Sale{
		TransactionID: uuid.NewString(),
		Status:        StatusPending,
		Amount:        sale.Amount,
		PixCode:       "00020126580014br.gov.bcb.pix0136" + uuid.NewString(),
	}

	m.mu.Lock()
	m.sales[created.TransactionID] = created
	m.mu.Unlock()

	m.writeJSON(w, http.StatusOK, saleResponse{Success: true, Data: *created})
}

func (m *Mock) saleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	m.mu.Lock()
	sale, ok := m.sales[id]
	if ok {
		m.polls[id]++
		if m.polls[id] >= m.PaidAfter {
			sale.Status = StatusPaid
		}
	}
	var snapshot Sale
	if ok {
		snapshot = *sale
	}
	m.mu.Unlock()

	if !ok {
		m.writeJSON(w, http.StatusNotFound, errorResponse{Message: "Sale not found"})
		return
	}

	m.writeJSON(w, http.StatusOK, saleResponse{Success: true, Data: snapshot})
}

func (m *Mock) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		m.logger.Debug("Error writing response", "error", err)
	}
}
