// Package config holds the domain primitives shared by every other
// package's own Config type: a koanf-decodable Duration and a Secret
// wrapper that keeps credential material out of logs by construction.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is time.Duration with koanf/JSON/YAML decoding from either a Go
// duration string ("30s") or a plain number of nanoseconds.
type Duration time.Duration

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON renders the duration as its Go string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts either a duration string or a bare number.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var asString string
	if err := json.Unmarshal(b, &asString); err == nil {
		parsed, err := time.ParseDuration(asString)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", asString, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var asNumber int64
	if err := json.Unmarshal(b, &asNumber); err != nil {
		return fmt.Errorf("config: duration must be a string or number: %w", err)
	}
	*d = Duration(asNumber)
	return nil
}

// Secret holds a credential value that must never be logged or printed
// verbatim. String (and therefore fmt's %v/%s) always redacts; Reveal is the
// only way to recover the real value, and call sites reaching for it should
// be rare and obvious (building an Authorization header, dialing a client).
type Secret string

// String implements fmt.Stringer with a fixed redaction marker so Secret
// values are safe inside structs that get logged via %+v.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// Value exposes the redacted-length form used by Zap object marshaling
// (internal/logging.Secret) without revealing the underlying bytes.
func (s Secret) Value() string { return string(s) }

// Reveal returns the real credential value.
func (s Secret) Reveal() string { return string(s) }

// MarshalJSON redacts Secret in any JSON encoding, including config dumps.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts a plain string as the real secret value.
func (s *Secret) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}
