package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kusanagi/ipm-go/sink"
)

var _ sink.EventSink = (*Logger)(nil)

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("test", &buf, WARNING)

	l.Info("should not appear")
	require.Empty(t, buf.String())

	l.Warn("boundary reached", "attempt", 3)
	require.Contains(t, buf.String(), "boundary reached")
	require.Contains(t, buf.String(), "attempt=3")
}

func TestLoggerErrorIncludesSeverityAndName(t *testing.T) {
	var buf bytes.Buffer
	l := New("myendpoint", &buf, ERROR)

	l.Error("bind failed", "endpoint", "tcp://*:0")

	line := strings.TrimRight(buf.String(), "\n")
	require.Contains(t, line, "[ERROR]")
	require.Contains(t, line, "[myendpoint]")
	require.Contains(t, line, "bind failed")
}
