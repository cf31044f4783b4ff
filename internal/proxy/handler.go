package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"blackcat-storefront/internal/gateway"
	"blackcat-storefront/internal/payload"
	"github.com/VictoriaMetrics/metrics"
)

const (
	opCreateSale  = "create_sale"
	opCheckStatus = "check_status"

	maxBodyBytes = 64 << 10

	msgMethodNotAllowed  = "Método não permitido"
	msgMissingAPIKey     = "API Key não configurada. Configure no config.json ou variável de ambiente BLACKCAT_API_KEY"
	msgInvalidBody       = "Corpo da requisição inválido"
	msgCreateSaleFailed  = "Erro ao criar venda"
	msgCheckStatusFailed = "Erro ao consultar status"
	msgMissingTxID       = "transactionId é obrigatório"
	msgInvalidTxID       = "transactionId inválido"
	msgInvalidUpstream   = "Resposta inválida do gateway de pagamento"
	msgInternalError     = "Erro interno do servidor"
)

// SaleGateway is the upstream payment gateway as seen by the proxy.
type SaleGateway interface {
	CreateSale(ctx context.Context, apiKey string, sale payload.Sale) (*gateway.Response, error)
	SaleStatus(ctx context.Context, apiKey, id string) (*gateway.Response, error)
}

// Credentials resolves the upstream API key on every request.
type Credentials interface {
	APIKey() string
}

type Handler struct {
	gateway SaleGateway
	creds   Credentials
	logger  *slog.Logger
}

func NewHandler(gw SaleGateway, creds Credentials, logger *slog.Logger) *Handler {
	return &Handler{
		gateway: gw,
		creds:   creds,
		logger:  logger,
	}
}

// CreateSale handles POST /api/create-sale.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.recover(ctx, w, opCreateSale)

	if !h.preamble(w, r, http.MethodPost, opCreateSale) {
		return
	}

	apiKey, ok := h.apiKey(ctx, w, opCreateSale)
	if !ok {
		return
	}

	var req payload.SaleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || dec.More() {
		h.logger.InfoContext(ctx, "Rejected sale request body", "error", err)
		h.fail(w, http.StatusBadRequest, msgInvalidBody, opCreateSale, "invalid")
		return
	}

	if err := req.Validate(); err != nil {
		h.logger.InfoContext(ctx, "Rejected sale request", "reason", err.Error())
		h.fail(w, http.StatusBadRequest, err.Error(), opCreateSale, "invalid")
		return
	}

	resp, err := h.gateway.CreateSale(ctx, apiKey, req.ToSale())
	if err != nil {
		h.unexpected(ctx, w, err, opCreateSale)
		return
	}

	h.relay(ctx, w, resp, msgCreateSaleFailed, opCreateSale)
}

// CheckStatus handles GET /api/check-status?transactionId=.
func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.recover(ctx, w, opCheckStatus)

	if !h.preamble(w, r, http.MethodGet, opCheckStatus) {
		return
	}

	apiKey, ok := h.apiKey(ctx, w, opCheckStatus)
	if !ok {
		return
	}

	ids := r.URL.Query()["transactionId"]
	if len(ids) == 0 || ids[0] == "" {
		h.fail(w, http.StatusBadRequest, msgMissingTxID, opCheckStatus, "invalid")
		return
	}
	if len(ids) > 1 || !payload.ValidTransactionID(ids[0]) {
		h.fail(w, http.StatusBadRequest, msgInvalidTxID, opCheckStatus, "invalid")
		return
	}

	resp, err := h.gateway.SaleStatus(ctx, apiKey, ids[0])
	if err != nil {
		h.unexpected(ctx, w, err, opCheckStatus)
		return
	}

	h.relay(ctx, w, resp, msgCheckStatusFailed, opCheckStatus)
}

// preamble sets the CORS headers, answers preflight and rejects other methods.
// It reports whether the handler should continue.
func (h *Handler) preamble(w http.ResponseWriter, r *http.Request, method, op string) bool {
	hdr := w.Header()
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Access-Control-Allow-Methods", method+", OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		count(op, "preflight")
		w.WriteHeader(http.StatusOK)
		return false
	case method:
		return true
	default:
		h.fail(w, http.StatusMethodNotAllowed, msgMethodNotAllowed, op, "method_not_allowed")
		return false
	}
}

func (h *Handler) apiKey(ctx context.Context, w http.ResponseWriter, op string) (string, bool) {
	key := h.creds.APIKey()
	if key == "" {
		h.logger.ErrorContext(ctx, "BLACKCAT_API_KEY is not configured")
		h.fail(w, http.StatusInternalServerError, msgMissingAPIKey, op, "config_error")
		return "", false
	}
	return key, true
}

// relay passes a successful upstream body through untouched and normalizes failures.
func (h *Handler) relay(ctx context.Context, w http.ResponseWriter, resp *gateway.Response, fallback, op string) {
	if !resp.OK() {
		msg := resp.Message()
		if msg == "" {
			msg = fallback
		}
		status := resp.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		h.logger.WarnContext(ctx, "Relaying upstream failure", "status", resp.StatusCode, "message", msg)
		h.fail(w, status, msg, op, "upstream_error")
		return
	}

	if !resp.ValidJSON() {
		h.logger.ErrorContext(ctx, "Upstream returned a malformed body", "status", resp.StatusCode)
		h.fail(w, http.StatusInternalServerError, msgInvalidUpstream, op, "error")
		return
	}

	count(op, "success")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.DebugContext(ctx, "Error writing response", "error", err)
	}
}

func (h *Handler) unexpected(ctx context.Context, w http.ResponseWriter, err error, op string) {
	h.logger.ErrorContext(ctx, "Error processing request", "error", err)
	msg := err.Error()
	if msg == "" {
		msg = msgInternalError
	}
	h.fail(w, http.StatusInternalServerError, msg, op, "error")
}

func (h *Handler) recover(ctx context.Context, w http.ResponseWriter, op string) {
	if rec := recover(); rec != nil {
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		h.unexpected(ctx, w, fmt.Errorf("%v", rec), op)
	}
}

func (h *Handler) fail(w http.ResponseWriter, status int, msg, op, result string) {
	count(op, result)
	h.writeJSON(w, status, payload.Response{Success: false, Message: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Debug("Error writing response", "error", err)
	}
}

func count(op, result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`proxy_requests_total{op=%q,result=%q}`, op, result)).Inc()
}
