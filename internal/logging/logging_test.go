package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestNew_DebugFlagGatesDiagnostics(t *testing.T) {
	var quiet, verbose bytes.Buffer

	New(&quiet, false).Debug("render decision")
	New(&verbose, true).Debug("render decision")

	assert.Zero(t, quiet.Len())
	assert.Contains(t, verbose.String(), "render decision")
}

func TestNew_InfoAlwaysWritten(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Info("saved")
	assert.Contains(t, buf.String(), "saved")
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))

	l := log.New(&bytes.Buffer{})
	assert.Same(t, l, OrDiscard(l))
}

func TestContextRoundTrip(t *testing.T) {
	l := log.New(&bytes.Buffer{})
	ctx := WithLogger(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
	assert.Same(t, log.Default(), FromContext(context.Background()))
}
