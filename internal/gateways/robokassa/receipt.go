package robokassa

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// receiptItem is one fiscal receipt line. Robokassa requires a receipt block
// for fiscally-regulated merchants; the service always sends a single line
// describing the top-up.
type receiptItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Sum      decimal.Decimal `json:"sum"`
	Tax      string          `json:"tax"`
}

type receipt struct {
	Items []receiptItem `json:"items"`
}

// encodeReceipt renders the fiscal receipt as base64-encoded JSON for the
// checkout URL
func encodeReceipt(description string, sum decimal.Decimal) (string, error) {
	if description == "" {
		description = "Account top-up"
	}
	r := receipt{Items: []receiptItem{{
		Name:     description,
		Quantity: 1,
		Sum:      sum,
		Tax:      "none",
	}}}

	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal receipt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
