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

// Package logging builds the zap loggers used by tandemd.
//
// There are two of them.  The event logger carries the supervisor's own
// structured events.  The relay logger carries the children's output, and
// renders every line as
//
//	[<timestamp>] [<process> > <stream>] <line>
//
// Both write to the console, and both are copied into a rotated log file
// when one is configured.
package logging

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tandem-run/tandem/internal/config"
)

// TimeLayout is the timestamp layout of relayed lines.
const TimeLayout = "2006-01-02 15:04:05.000"

// Loggers holds the loggers built from one LogConfig.
type Loggers struct {
	Events *zap.Logger
	Relay  *zap.Logger

	file io.Closer
}

func bracketTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + t.Format(TimeLayout) + "]")
}

func bracketName(name string, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + name + "]")
}

// RelayEncoderConfig renders "[time] [name] message" and nothing else.
func RelayEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "ts",
		NameKey:          "logger",
		MessageKey:       "msg",
		LevelKey:         zapcore.OmitKey,
		CallerKey:        zapcore.OmitKey,
		FunctionKey:      zapcore.OmitKey,
		StacktraceKey:    zapcore.OmitKey,
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       bracketTime,
		EncodeName:       bracketName,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func eventEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// New builds the loggers.  Console output goes to out.  Relayed lines are
// always logged, whatever the configured level.
func New(cfg config.LogConfig, out zapcore.WriteSyncer) (*Loggers, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	events := []zapcore.Core{zapcore.NewCore(eventEncoder(cfg.Format), out, level)}
	relay := []zapcore.Core{zapcore.NewCore(zapcore.NewConsoleEncoder(RelayEncoderConfig()), out, zapcore.DebugLevel)}

	l := &Loggers{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		// One rotating writer shared by both cores.
		file := zapcore.AddSync(lj)
		events = append(events, zapcore.NewCore(eventEncoder("json"), file, level))
		relay = append(relay, zapcore.NewCore(zapcore.NewConsoleEncoder(RelayEncoderConfig()), file, zapcore.DebugLevel))
		l.file = lj
	}

	l.Events = zap.New(zapcore.NewTee(events...), zap.ErrorOutput(out))
	l.Relay = zap.New(zapcore.NewTee(relay...), zap.ErrorOutput(out))
	return l, nil
}

// Sync flushes both loggers.
func (l *Loggers) Sync() {
	_ = l.Events.Sync()
	_ = l.Relay.Sync()
}

// Close flushes the loggers and closes the log file, if any.
func (l *Loggers) Close() error {
	l.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
