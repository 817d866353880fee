package types

// SecretString wraps sensitive configuration values (API keys, connection
// strings) so they cannot leak through logging or JSON encoding. The raw
// value is only reachable through an explicit Reveal call.
type SecretString string

// String implements fmt.Stringer with a redacted placeholder.
func (s SecretString) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// MarshalJSON encodes the redacted placeholder, never the raw value.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Reveal returns the raw secret value for use at the call site that actually
// needs it (HTTP auth headers, DSNs).
func (s SecretString) Reveal() string {
	return string(s)
}

// IsSet reports whether a value has been configured.
func (s SecretString) IsSet() bool {
	return s != ""
}
