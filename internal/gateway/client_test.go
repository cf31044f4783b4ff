package gateway_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"blackcat-storefront/internal/config"
	"blackcat-storefront/internal/gateway"
	"blackcat-storefront/internal/payload"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://gateway.example/api"

func newClient() *gateway.Client {
	return gateway.NewClient(config.Gateway{BaseURL: baseURL, Timeout: 5 * time.Second}, slog.Default())
}

func sale() payload.Sale {
	return payload.Sale{
		Amount:        6892,
		Currency:      "BRL",
		PaymentMethod: "pix",
		Items:         []payload.Item{{Title: "Serviço", UnitPrice: 6892, Quantity: 1}},
		Customer: payload.Customer{
			Name:     "Maria",
			Email:    "maria@example.com",
			Phone:    "11988887777",
			Document: payload.Document{Number: "12345678909", Type: "cpf"},
		},
		Pix: payload.Pix{ExpiresInDays: 1},
	}
}

func TestClient_CreateSale(t *testing.T) {
	tests := []struct {
		name            string
		mockResponse    func()
		expectedStatus  int
		expectedOK      bool
		expectedMessage string
	}{
		{
			name: "Success",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/sales/create-sale").
					MatchHeader("X-API-Key", "^secret$").
					MatchType("json").
					JSON(map[string]any{
						"amount":        6892,
						"currency":      "BRL",
						"paymentMethod": "pix",
						"items":         []any{map[string]any{"title": "Serviço", "unitPrice": 6892, "quantity": 1, "tangible": false}},
						"customer": map[string]any{
							"name":     "Maria",
							"email":    "maria@example.com",
							"phone":    "11988887777",
							"document": map[string]any{"number": "12345678909", "type": "cpf"},
						},
						"pix": map[string]any{"expiresInDays": 1},
					}).
					Reply(200).
					JSON(map[string]any{"success": true, "data": map[string]string{"transactionId": "tx_1"}})
			},
			expectedStatus: 200,
			expectedOK:     true,
		},
		{
			name: "Upstream validation error",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/sales/create-sale").
					Reply(422).
					JSON(map[string]string{"message": "invalid document"})
			},
			expectedStatus:  422,
			expectedMessage: "invalid document",
		},
		{
			name: "Upstream error without message",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/sales/create-sale").
					Reply(503).
					BodyString("<html>unavailable</html>")
			},
			expectedStatus: 503,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mockResponse()

			resp, err := newClient().CreateSale(context.Background(), "secret", sale())
			require.NoError(t, err)

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Equal(t, tt.expectedOK, resp.OK())
			assert.Equal(t, tt.expectedMessage, resp.Message())
			assert.True(t, gock.IsDone())
		})
	}
}

func TestClient_SaleStatus(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Get("/sales/tx_123/status").
		MatchHeader("X-API-Key", "^secret$").
		Reply(200).
		JSON(map[string]any{"success": true, "data": map[string]string{"status": "PAID"}})

	resp, err := newClient().SaleStatus(context.Background(), "secret", "tx_123")
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.True(t, resp.ValidJSON())
	assert.JSONEq(t, `{"success":true,"data":{"status":"PAID"}}`, string(resp.Body))
	assert.True(t, gock.IsDone())
}

func TestClient_TransportError(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Get("/sales/tx_123/status").
		ReplyError(errors.New("connection refused"))

	_, err := newClient().SaleStatus(context.Background(), "secret", "tx_123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calling payment gateway")
	assert.NotContains(t, err.Error(), "secret")
}

func TestResponse_Message(t *testing.T) {
	assert.Equal(t, "boom", (&gateway.Response{Body: []byte(`{"message":"boom"}`)}).Message())
	assert.Equal(t, "", (&gateway.Response{Body: []byte(`{"message":42}`)}).Message())
	assert.Equal(t, "", (&gateway.Response{Body: []byte(`not json`)}).Message())
}
