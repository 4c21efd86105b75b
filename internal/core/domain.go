package core

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

type (
	// ID is the store-assigned identity of a transaction. JSON stores hand out
	// either numeric or string ids, so both decode into the same type.
	ID string

	Transaction struct {
		ID          ID     `json:"id"`
		Date        string `json:"date"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Amount      Amount `json:"amount"`
	}

	// NewTransaction is the create payload: a transaction the store has not
	// assigned an id to yet.
	NewTransaction struct {
		Date        string `json:"date"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Amount      Amount `json:"amount"`
	}
)

var ErrEmptyID = errors.New("empty transaction id")

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the id was never assigned.
func (id ID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// MarshalJSON writes ids that are valid JSON number text back as numbers, so
// a numeric id from the store (including -1 or 1.5) keeps its kind. A string
// id that happens to hold number text is written as a number too.
func (id ID) MarshalJSON() ([]byte, error) {
	if jsonNumber.MatchString(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*id = ""
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*id = ID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// ParseID converts a path segment or form value into an ID.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyID
	}
	return ID(s), nil
}

// WithID returns the stored representation of n under the given id.
func (n NewTransaction) WithID(id ID) Transaction {
	return Transaction{
		ID:          id,
		Date:        n.Date,
		Description: n.Description,
		Category:    n.Category,
		Amount:      n.Amount,
	}
}

// jsonNumber is the JSON number grammar, so "007" and "+1" stay strings.
var jsonNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)
