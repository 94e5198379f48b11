package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestContextFields(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	logger := WithOperation(WithTicker(WithBasket(zerolog.New(&buf), "startups"), "SWIGGY.NS"), "chart")
	logger.Info().Msg("hello")

	entry := decode(t, &buf)
	assert.Equal(t, "startups", entry["basket"])
	assert.Equal(t, "SWIGGY.NS", entry["ticker"])
	assert.Equal(t, "chart", entry["operation"])
}

func TestLogHelpers(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogFetch(logger, "yahoo", "prices", 3, 40*time.Millisecond, errors.New("boom"))
	entry := decode(t, &buf)
	assert.Equal(t, "fetch", entry["event"])
	assert.Equal(t, "yahoo", entry["provider"])
	assert.EqualValues(t, 3, entry["tickers"])
	assert.Equal(t, "boom", entry["error"])

	buf.Reset()
	LogImputation(logger, "IXIGO.NS", 1.5e9, nil)
	entry = decode(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "IXIGO.NS", entry["ticker"])
	assert.InDelta(t, 1.5e9, entry["median_shares"], 1)

	buf.Reset()
	LogIndex(logger, 2, 250, 104.48)
	entry = decode(t, &buf)
	assert.EqualValues(t, 250, entry["points"])
}

func TestFileLoggerWritesRotatingFile(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	path := filepath.Join(t.TempDir(), "logs", "basketindex.log")
	cfg := DefaultLogConfig()
	cfg.Console = false
	cfg.FilePath = path

	logger := NewLoggerWithConfig(cfg)
	logger.Info().Str("basket", "startups").Msg("written")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"basket":"startups"`)
}
