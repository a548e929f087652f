package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudcostguard/estimate-load/internal/logging"
)

func newTestLogger(t *testing.T, w io.Writer) *zap.Logger {
	t.Helper()
	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", Output: w})
	require.NoError(t, err)
	return logger
}
