package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/sovereign-ledger/internal/logger"
)

func TestNew(t *testing.T) {
	testCases := map[string]struct {
		format    string
		level     string
		expectErr bool
	}{
		"invalid format": {
			format:    "foo",
			level:     logger.LogLevelInfo,
			expectErr: true,
		},
		"invalid level": {
			format:    logger.LogFormatJSON,
			level:     "foo",
			expectErr: true,
		},
		"empty level": {
			format:    logger.LogFormatJSON,
			level:     "",
			expectErr: true,
		},
		"valid json": {
			format: logger.LogFormatJSON,
			level:  logger.LogLevelInfo,
		},
		"valid plain": {
			format: logger.LogFormatPlain,
			level:  logger.LogLevelDebug,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := logger.New(tc.format, tc.level)
			if tc.expectErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestJSONOutputRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := logger.NewWithWriter(&buf, logger.LogFormatJSON, logger.LogLevelWarn)
	require.NoError(t, err)

	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Warn().Str("tx_id", "abc").Msg("published")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "abc", line["tx_id"])
	assert.Equal(t, "published", line["message"])
}
