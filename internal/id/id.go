package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ClientID is the canonical ledger form of a client identifier.
// Portal and client records carry numeric ids; ledgers persist strings.
// Convert at the boundary with ToLedgerClientID and compare ClientID values inside.
type ClientID string

// String returns the raw identifier.
func (c ClientID) String() string { return string(c) }

// IsZero reports whether the identifier is empty.
func (c ClientID) IsZero() bool { return c == "" }

// External is any representation a collaborator may hand us.
type External interface {
	~string | ~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// ToLedgerClientID normalizes a string or numeric identifier to its ledger form.
// "  42 " -> "42", "007" -> "7", 42 -> "42", "C-19" -> "C-19".
func ToLedgerClientID[T External](v T) ClientID {
	s := strings.TrimSpace(fmt.Sprint(v))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ClientID(strconv.FormatInt(n, 10))
	}
	return ClientID(s)
}

// ToExternalClientID converts an identifier to the numeric form used by client records.
// Non-numeric identifiers yield 0.
func ToExternalClientID[T External](v T) int64 {
	n, err := strconv.ParseInt(string(ToLedgerClientID(v)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ClientIDsMatch compares two identifiers after normalizing both.
func ClientIDsMatch[A, B External](a A, b B) bool {
	return ToLedgerClientID(a) == ToLedgerClientID(b)
}

// New returns a fresh entity identifier.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s is a well-formed entity identifier.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
