// Package signature implements the card gateway's request signing scheme.
//
// The signed material is the concatenation of scalar parameter values sorted
// by key, with the terminal password injected under the Password key. Nested
// structures (receipts, the DATA bag, marketplace shops) and the signature
// field itself never take part in signing.
package signature

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

const (
	// TokenKey is the field that carries the signature
	TokenKey = "Token"
	// PasswordKey is the key under which the secret joins the signed material
	PasswordKey = "Password"
)

// excludedKeys are structured fields the gateway leaves out of the signature
var excludedKeys = map[string]struct{}{
	TokenKey:  {},
	"Receipt": {},
	"DATA":    {},
	"Shops":   {},
}

// Params is the set of scalar values that take part in signing. Build it with
// Set or FromMap; both silently drop excluded keys and non-scalar values.
type Params struct {
	values map[string]string
}

// NewParams creates an empty parameter set
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// FromMap builds a parameter set from a decoded JSON object
func FromMap(m map[string]any) *Params {
	p := NewParams()
	for k, v := range m {
		p.Set(k, v)
	}
	return p
}

// Set adds a scalar value. A nil value is kept as an empty string.
func (p *Params) Set(key string, value any) *Params {
	if _, skip := excludedKeys[key]; skip {
		return p
	}
	if s, ok := scalarString(value); ok {
		p.values[key] = s
	}
	return p
}

// Len returns the number of signable values
func (p *Params) Len() int {
	return len(p.values)
}

// scalarString renders v as the gateway does. ok is false for structured values.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

// Sign returns the lowercase hex SHA-256 signature of params under secret
func Sign(params *Params, secret string) string {
	keys := make([]string, 0, len(params.values)+1)
	for k := range params.values {
		if k == PasswordKey {
			continue
		}
		keys = append(keys, k)
	}
	keys = append(keys, PasswordKey)
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if k == PasswordKey {
			b.WriteString(secret)
			continue
		}
		b.WriteString(params.values[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the signature of a notification and compares it with the
// received Token field, ignoring case.
func Verify(notification map[string]any, secret string) bool {
	received, ok := notification[TokenKey].(string)
	if !ok || received == "" {
		return false
	}
	expected := Sign(FromMap(notification), secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(received))) == 1
}
