package domain

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// GlobalID is the externally visible identifier of an inventory record: a
// two-letter type code followed by the numeric record id, e.g. "SA5".
type GlobalID string

// RecordType identifies a variant of the inventory record union.
type RecordType string

// Supported record types.
const (
	RecordContainer RecordType = "CONTAINER"
	RecordSample    RecordType = "SAMPLE"
	RecordSubsample RecordType = "SUBSAMPLE"
	RecordTemplate  RecordType = "SAMPLE_TEMPLATE"
	// RecordWorkbench is a container variant; workbenches carry their own prefix.
	RecordWorkbench RecordType = "WORKBENCH"
)

var prefixes = map[RecordType]string{
	RecordContainer: "IC",
	RecordSample:    "SA",
	RecordSubsample: "SS",
	RecordTemplate:  "IT",
	RecordWorkbench: "BE",
}

var typesByPrefix = func() map[string]RecordType {
	out := make(map[string]RecordType, len(prefixes))
	for t, p := range prefixes {
		out[p] = t
	}
	return out
}()

// NewGlobalID formats the global id of a record of type t with numeric id n.
func NewGlobalID(t RecordType, n int64) GlobalID {
	return GlobalID(prefixes[t] + strconv.FormatInt(n, 10))
}

// ParseGlobalID validates s and returns it as a GlobalID.
func ParseGlobalID(s string) (GlobalID, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 {
		return "", errors.Wrapf(ErrInvalidGlobalID, "%q", s)
	}
	if _, ok := typesByPrefix[strings.ToUpper(s[:2])]; !ok {
		return "", errors.Wrapf(ErrInvalidGlobalID, "%q: unknown prefix", s)
	}
	n, err := strconv.ParseInt(s[2:], 10, 64)
	if err != nil || n <= 0 {
		return "", errors.Wrapf(ErrInvalidGlobalID, "%q: bad number", s)
	}
	return GlobalID(strings.ToUpper(s[:2]) + s[2:]), nil
}

// Prefix returns the two-letter type code.
func (g GlobalID) Prefix() string {
	if len(g) < 2 {
		return ""
	}
	return string(g[:2])
}

// Number returns the numeric part, or 0 for a malformed id.
func (g GlobalID) Number() int64 {
	if len(g) < 3 {
		return 0
	}
	n, err := strconv.ParseInt(string(g[2:]), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// RecordType reports the record type encoded in the prefix.
func (g GlobalID) RecordType() (RecordType, bool) {
	t, ok := typesByPrefix[g.Prefix()]
	return t, ok
}

func (g GlobalID) String() string { return string(g) }
