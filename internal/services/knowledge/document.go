package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Scalar keeps a JSON string or number exactly as it was published
type Scalar json.RawMessage

// MarshalJSON writes the raw value back
func (s Scalar) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return s, nil
}

// UnmarshalJSON stores the raw value
func (s *Scalar) UnmarshalJSON(data []byte) error {
	*s = append((*s)[0:0], data...)
	return nil
}

// String returns the unquoted string or the number literal
func (s Scalar) String() string {
	var str string
	if err := json.Unmarshal(s, &str); err == nil {
		return str
	}
	return string(s)
}

// FAQEntry is a compressed FAQ record
type FAQEntry struct {
	Topic    string `json:"t,omitempty"`
	Question string `json:"q,omitempty"`
	Answer   string `json:"a,omitempty"`
}

// User is a compressed customer record
type User struct {
	ID    Scalar `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
}

// PointsAccount is a compressed rewards account
type PointsAccount struct {
	ID      Scalar `json:"id,omitempty"`
	UserID  Scalar `json:"userId,omitempty"`
	Balance Scalar `json:"balance,omitempty"`
	Tier    string `json:"tier,omitempty"`
}

// Order is a compressed order record
type Order struct {
	ID     Scalar `json:"id,omitempty"`
	UserID Scalar `json:"userId,omitempty"`
	Status string `json:"status,omitempty"`
	Total  Scalar `json:"total,omitempty"`
	Date   string `json:"date,omitempty"`
}

// Transaction is a compressed points activity
type Transaction struct {
	ID          Scalar `json:"id,omitempty"`
	UserID      Scalar `json:"userId,omitempty"`
	Amount      Scalar `json:"amount,omitempty"`
	Description string `json:"desc,omitempty"`
	Type        string `json:"type,omitempty"`
	Date        string `json:"date,omitempty"`
}

// Document is the published knowledge base
type Document struct {
	FAQ          []FAQEntry      `json:"faq,omitempty"`
	Users        []User          `json:"users,omitempty"`
	Points       []PointsAccount `json:"points,omitempty"`
	Orders       []Order         `json:"orders,omitempty"`
	Transactions []Transaction   `json:"transactions,omitempty"`
}

// ErrNotAnObject is returned when the knowledge base is not a JSON object
var ErrNotAnObject = errors.New("knowledge base must be a JSON object")

// ParseDocument decodes a knowledge-base JSON object
func ParseDocument(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotAnObject
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge base: %w", err)
	}
	return &doc, nil
}

// Items counts every record across sections
func (d *Document) Items() int {
	if d == nil {
		return 0
	}
	return len(d.FAQ) + len(d.Users) + len(d.Points) + len(d.Orders) + len(d.Transactions)
}

// Serialize renders the document as two-space indented JSON
func (d *Document) Serialize() (string, error) {
	if d == nil {
		d = &Document{}
	}
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
