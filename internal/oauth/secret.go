package oauth

import "log/slog"

const redacted = "[REDACTED]"

// Secret holds a client secret. Every formatting path prints a placeholder so the
// value can't leak through logs, %v, or JSON. Use Reveal only where the provider
// needs it on the wire.
type Secret string

// Reveal returns the raw value.
func (s Secret) Reveal() string { return string(s) }

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

// MarshalText implements encoding.TextMarshaler (covers JSON and YAML encoders).
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }
