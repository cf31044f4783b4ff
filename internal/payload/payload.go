package payload

import (
	"bytes"
	"encoding/json"
	"regexp"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	Currency          = "BRL"
	PaymentMethod     = "pix"
	DocumentType      = "cpf"
	DefaultItemTitle  = "Serviço"
	PixExpiresInDays  = 1
	MaxNameLength     = 200
	MaxEmailLength    = 200
	MaxPhoneLength    = 20
	MaxDocumentLength = 20
	MaxTransactionID  = 100
)

var (
	MaxAmount = decimal.NewFromInt(1_000_000)

	emailPattern         = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	transactionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	nonDigits            = regexp.MustCompile(`\D`)
	hundred              = decimal.NewFromInt(100)
)

// SaleRequest is the body accepted by POST /api/create-sale.
type SaleRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	ItemTitle        string          `json:"itemTitle,omitempty"`
	CustomerName     string          `json:"customerName"`
	CustomerEmail    string          `json:"customerEmail"`
	CustomerPhone    string          `json:"customerPhone"`
	CustomerDocument string          `json:"customerDocument"`
}

// UnmarshalJSON rejects unknown fields and requires amount to be a JSON number.
func (r *SaleRequest) UnmarshalJSON(data []byte) error {
	type fields SaleRequest
	var raw struct {
		fields
		Amount json.RawMessage `json:"amount"`
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	amount, err := parseAmount(raw.Amount)
	if err != nil {
		return err
	}

	*r = SaleRequest(raw.fields)
	r.Amount = amount
	return nil
}

// parseAmount accepts a number literal. A missing or null amount is zero and fails Validate.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, nil
	}
	if c := raw[0]; c != '-' && (c < '0' || c > '9') {
		return decimal.Zero, errors.Errorf("amount must be a number, got %s", raw)
	}

	amount, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parsing amount")
	}
	return amount, nil
}

// Sale is the body sent to the upstream create-sale endpoint.
type Sale struct {
	Amount        int64    `json:"amount"`
	Currency      string   `json:"currency"`
	PaymentMethod string   `json:"paymentMethod"`
	Items         []Item   `json:"items"`
	Customer      Customer `json:"customer"`
	Pix           Pix      `json:"pix"`
}

type Item struct {
	Title     string `json:"title"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Tangible  bool   `json:"tangible"`
}

type Customer struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Document Document `json:"document"`
}

type Document struct {
	Number string `json:"number"`
	Type   string `json:"type"`
}

type Pix struct {
	ExpiresInDays int `json:"expiresInDays"`
}

// Response is the envelope returned by the proxy on failure. Successful
// responses are relayed from upstream as received.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ValidationError carries a user facing message and maps to 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// Validate applies the checks in order and returns the first violation.
func (r SaleRequest) Validate() error {
	if !r.Amount.IsPositive() || r.Amount.GreaterThan(MaxAmount) {
		return invalid("Valor inválido")
	}

	if r.CustomerName == "" || r.CustomerEmail == "" || r.CustomerPhone == "" || r.CustomerDocument == "" {
		return invalid("Dados do cliente incompletos")
	}

	if utf8.RuneCountInString(r.CustomerName) > MaxNameLength {
		return invalid("Nome inválido")
	}

	if utf8.RuneCountInString(r.CustomerEmail) > MaxEmailLength || !emailPattern.MatchString(r.CustomerEmail) {
		return invalid("Email inválido")
	}

	if utf8.RuneCountInString(r.CustomerPhone) > MaxPhoneLength {
		return invalid("Telefone inválido")
	}

	if utf8.RuneCountInString(r.CustomerDocument) > MaxDocumentLength {
		return invalid("Documento inválido")
	}

	return nil
}

// ToSale builds the upstream payload. The request must have passed Validate.
func (r SaleRequest) ToSale() Sale {
	cents := MinorUnits(r.Amount)

	title := r.ItemTitle
	if title == "" {
		title = DefaultItemTitle
	}

	return Sale{
		Amount:        cents,
		Currency:      Currency,
		PaymentMethod: PaymentMethod,
		Items: []Item{
			{
				Title:     title,
				UnitPrice: cents,
				Quantity:  1,
				Tangible:  false,
			},
		},
		Customer: Customer{
			Name:  r.CustomerName,
			Email: r.CustomerEmail,
			Phone: DigitsOnly(r.CustomerPhone),
			Document: Document{
				Number: DigitsOnly(r.CustomerDocument),
				Type:   DocumentType,
			},
		},
		Pix: Pix{ExpiresInDays: PixExpiresInDays},
	}
}

// MinorUnits converts an amount to cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func DigitsOnly(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// ValidTransactionID reports whether id is safe to use as an upstream path segment.
func ValidTransactionID(id string) bool {
	return len(id) <= MaxTransactionID && transactionIDPattern.MatchString(id)
}
