package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ─── Identity Key ───────────────────────────────────────────────────────────
// The identity key is the sole duplicate guard across heterogeneous sources,
// so its construction must be bit-exact: same normalization, same rounding,
// same serialization on both the candidate and the stored side.

// IdentityKey is the composite duplicate-detection key of a ledger entry.
type IdentityKey struct {
	Date          string // YYYY-MM-DD
	Amount        string // rounded to 2 decimal places
	Account       string // verbatim
	Description   string // lowercased, trimmed
	Channel       string // source file or channel
	SignatureHash string // digest of the canonical raw payload
}

// String flattens the key into a single comparable value.
func (k IdentityKey) String() string {
	return strings.Join([]string{k.Date, k.Amount, k.Account, k.Description, k.Channel, k.SignatureHash}, "|")
}

// CandidateKey computes the identity key of an incoming candidate. A date
// that cannot be parsed is a hard rejection: an entry must never be stored
// with a null identity date.
func CandidateKey(c *Candidate) (IdentityKey, error) {
	day, err := ParseDate(c.OccurredOn)
	if err != nil {
		return IdentityKey{}, fmt.Errorf("%w: %q", ErrParseRejected, c.OccurredOn)
	}
	return IdentityKey{
		Date:          day.Format("2006-01-02"),
		Amount:        c.Amount.Round(2).StringFixed(2),
		Account:       c.Account,
		Description:   NormalizeDescription(c.Description),
		Channel:       c.SourceChannel,
		SignatureHash: SignatureHash(CanonicalSignature(c.RawPayload)),
	}, nil
}

// EntryKey computes the identity key of a stored entry, using the canonical
// signature persisted at insert time.
func EntryKey(e *Entry) IdentityKey {
	return IdentityKey{
		Date:          e.OccurredOn.Format("2006-01-02"),
		Amount:        e.Amount.Round(2).StringFixed(2),
		Account:       e.Account,
		Description:   NormalizeDescription(e.Description),
		Channel:       e.SourceChannel,
		SignatureHash: SignatureHash(e.SourceSignature),
	}
}

// NormalizeDescription lowercases and trims a description for key purposes.
func NormalizeDescription(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CanonicalSignature serializes a raw upstream payload into a stable string:
// JSON with object keys sorted (encoding/json sorts map keys). An absent
// payload serializes to the empty string so that two bare candidates can
// still collide on the rest of the tuple.
func CanonicalSignature(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(b)
}

// SignatureHash digests a canonical signature. Empty in, empty out.
func SignatureHash(signature string) string {
	if signature == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(signature))
	return hex.EncodeToString(sum[:])
}

// ExternalRefFromPayload recovers an upstream identifier from a raw payload
// when the dedicated external-reference field was lost in transit. Upstream
// ids arrive as strings or JSON numbers.
func ExternalRefFromPayload(payload map[string]any) string {
	v, ok := payload["id"]
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		if id == float64(int64(id)) {
			return fmt.Sprintf("%d", int64(id))
		}
		return fmt.Sprintf("%v", id)
	default:
		return ""
	}
}

// ─── Date Parsing ───────────────────────────────────────────────────────────

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseDate parses an upstream date string, truncated to the day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseTime parses an optional time-of-day string. Empty input is not an
// error; it means the entry sorts at midnight.
func ParseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", s)
}
