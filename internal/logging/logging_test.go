// Copyright 2026 The Tandem Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tandem-run/tandem"
	"github.com/tandem-run/tandem/internal/config"
)

type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Sync() error {
	return nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) lines() []string {
	return strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
}

func consoleConfig(level string) config.LogConfig {
	return config.LogConfig{Level: level, Format: "console"}
}

func TestRelayFormat(t *testing.T) {
	out := &syncBuffer{}
	l, err := New(consoleConfig("info"), out)
	require.NoError(t, err)

	sink := tandem.NewZapSink(l.Relay)
	sink.Line("db", tandem.StreamStdout, "ready to accept connections")
	sink.Line("api", tandem.StreamStderr, "Traceback (most recent call last):")
	l.Sync()

	lines := out.lines()
	require.Len(t, lines, 2)

	ts := `\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}\]`
	assert.Regexp(t, regexp.MustCompile(`^`+ts+` \[db > stdout\] ready to accept connections$`), lines[0])
	assert.Regexp(t, regexp.MustCompile(`^`+ts+` \[api > stderr\] Traceback \(most recent call last\):$`), lines[1])
}

func TestRelayIgnoresLevel(t *testing.T) {
	out := &syncBuffer{}
	l, err := New(consoleConfig("error"), out)
	require.NoError(t, err)

	l.Events.Info("dropped")
	tandem.NewZapSink(l.Relay).Line("db", tandem.StreamStdout, "kept")
	l.Sync()

	assert.NotContains(t, out.String(), "dropped")
	assert.Contains(t, out.String(), "[db > stdout] kept")
}

func TestEventFormats(t *testing.T) {
	out := &syncBuffer{}
	l, err := New(config.LogConfig{Level: "debug", Format: "json"}, out)
	require.NoError(t, err)

	l.Events.Info("subprocess exited", zap.String("process", "api"), zap.Int("code", 3))
	l.Sync()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out.lines()[0]), &entry))
	assert.Equal(t, "subprocess exited", entry["msg"])
	assert.Equal(t, "api", entry["process"])
	assert.Equal(t, float64(3), entry["code"])
	assert.Equal(t, "info", entry["level"])
}

func TestBadLevel(t *testing.T) {
	_, err := New(consoleConfig("chatty"), zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)
}

func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tandem.log")
	cfg := consoleConfig("info")
	cfg.File = path
	cfg.MaxSize = 1

	out := &syncBuffer{}
	l, err := New(cfg, out)
	require.NoError(t, err)

	l.Events.Info("starting process supervisor")
	tandem.NewZapSink(l.Relay).Line("db", tandem.StreamStdout, "hello")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"starting process supervisor"`)
	assert.Contains(t, string(data), "[db > stdout] hello")
	assert.Contains(t, out.String(), "[db > stdout] hello")
}
