package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidAccountRecord = errors.New("session: invalid account record")

// AccountRecord is the server-issued identity returned by login and registration.
type AccountRecord struct {
	Token    string `json:"account_hash"`
	Nickname string `json:"nickname"`
}

func (r AccountRecord) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return fmt.Errorf("%w: missing account_hash", ErrInvalidAccountRecord)
	}
	return nil
}

// ParseAccountRecord decodes one response line. A line that is not a JSON
// object with an account_hash (including the literal null) is rejected.
func ParseAccountRecord(raw string) (AccountRecord, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AccountRecord{}, fmt.Errorf("%w: empty line", ErrInvalidAccountRecord)
	}
	var rec *AccountRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return AccountRecord{}, fmt.Errorf("%w: %v", ErrInvalidAccountRecord, err)
	}
	if rec == nil {
		return AccountRecord{}, fmt.Errorf("%w: null record", ErrInvalidAccountRecord)
	}
	if err := rec.Validate(); err != nil {
		return AccountRecord{}, err
	}
	return *rec, nil
}

// Encode renders the record in the single-line wire form.
func (r AccountRecord) Encode() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
