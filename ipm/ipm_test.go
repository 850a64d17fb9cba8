package ipm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaultsConnectionString(t *testing.T) {
	cfg := NewConfig()
	require.Equal(t, DefaultConnectionString, cfg.ConnectionString())
}

func TestConfigConnectionStringOverride(t *testing.T) {
	cfg := Config{"connection_string": "tcp://127.0.0.1:6000"}
	require.Equal(t, "tcp://127.0.0.1:6000", cfg.ConnectionString())
}

func TestConfigConnectionStringsFoldsSingular(t *testing.T) {
	cfg := Config{"connection_string": "tcp://127.0.0.1:6000"}
	require.Equal(t, []string{"tcp://127.0.0.1:6000"}, cfg.ConnectionStrings())
}

func TestConfigConnectionStringsPrefersPlural(t *testing.T) {
	cfg := Config{
		"connection_string":  "tcp://ignored:1",
		"connection_strings": []string{"tcp://a:1", "tcp://b:2"},
	}
	require.Equal(t, []string{"tcp://a:1", "tcp://b:2"}, cfg.ConnectionStrings())
}

func TestConfigServiceNameAbsent(t *testing.T) {
	cfg := NewConfig()
	require.Equal(t, "", cfg.ServiceName())
}

func TestCountersAddAndSnapshot(t *testing.T) {
	var c Counters
	c.Add(10)
	c.Add(5)

	bytes, messages := c.Snapshot()
	require.Equal(t, uint64(15), bytes)
	require.Equal(t, uint64(2), messages)

	bytes, messages = c.Snapshot()
	require.Equal(t, uint64(0), bytes)
	require.Equal(t, uint64(0), messages)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "unconnected", Unconnected.String())
	require.Equal(t, "connected", Connected.String())
	require.Equal(t, "closed", Closed.String())
}

func TestRoleString(t *testing.T) {
	require.Equal(t, "Sender", RoleSender.String())
	require.Equal(t, "Subscriber", RoleSubscriber.String())
}

func TestErrorMessagesAreDescriptive(t *testing.T) {
	require.Contains(t, (&KnownStateForbidsSendError{State: Closed}).Error(), "closed")
	require.Contains(t, (&UnexpectedNumberOfBytesError{Got: 3, Want: 5}).Error(), "3")
	require.Contains(t, (&ServiceNotFoundError{Name: "foo"}).Error(), "foo")
}
