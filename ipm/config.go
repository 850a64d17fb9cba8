package ipm

// DefaultConnectionString is used for connection_string when a caller
// supplies none (spec §4.2).
const DefaultConnectionString = "inproc://default"

// Config is the key/value configuration object described in spec §6.
// Recognized keys: connection_string (string), connection_strings
// ([]string, Subscriber only), service_name (string, Publisher SRV
// discovery).
type Config map[string]interface{}

// NewConfig creates a Config with connection_string set to the default.
func NewConfig() Config {
	return Config{"connection_string": DefaultConnectionString}
}

// ConnectionString returns the connection_string key, defaulting to
// DefaultConnectionString when absent or empty.
func (c Config) ConnectionString() string {
	if v, ok := c["connection_string"].(string); ok && v != "" {
		return v
	}
	return DefaultConnectionString
}

// ConnectionStrings returns the connection_strings key (Subscriber only).
// A single connection_string is folded in as a one-element slice so
// callers can treat both forms uniformly.
func (c Config) ConnectionStrings() []string {
	if v, ok := c["connection_strings"].([]string); ok && len(v) > 0 {
		return v
	}
	if v, ok := c["connection_string"].(string); ok && v != "" {
		return []string{v}
	}
	return []string{DefaultConnectionString}
}

// ServiceName returns the service_name key, or "" when absent.
func (c Config) ServiceName() string {
	v, _ := c["service_name"].(string)
	return v
}
