// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configures the structured logger a Connection or Listener
// writes disconnect reasons and protocol errors to. The zero value is usable
// directly: with no Filename it writes to stdout, and an empty Level means
// "info".
//
// Grounded on the teacher-adjacent packetd logger package: zap with a
// console encoder and a local-time timestamp format, rotated through
// lumberjack when not writing to stdout.
type LogOptions struct {
	Stdout     bool   `config:"stdout"`
	Level      string `config:"level"`
	Filename   string `config:"filename"`
	MaxSizeMB  int    `config:"maxSize"`
	MaxAgeDays int    `config:"maxAge"`
	MaxBackups int    `config:"maxBackups"`
}

func defaultLogOptions() LogOptions {
	return LogOptions{Stdout: true, Level: "info"}
}

func parseZapLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// NewLogger builds a *zap.Logger from opt. Connections and Listeners accept
// one directly via WithLogger rather than reaching for a
// package-level global — this is a library, and two Listeners in the same
// process may reasonably want different log destinations.
func NewLogger(opt LogOptions) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Local().Format("2006-01-02 15:04:05.000"))
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	var w zapcore.WriteSyncer
	if opt.Stdout || opt.Filename == "" {
		w = zapcore.AddSync(os.Stdout)
	} else {
		if err := os.MkdirAll(filepath.Dir(opt.Filename), os.ModePerm); err != nil {
			w = zapcore.AddSync(os.Stdout)
		} else {
			w = zapcore.AddSync(&lumberjack.Logger{
				Filename:   opt.Filename,
				MaxSize:    opt.MaxSizeMB,
				MaxBackups: opt.MaxBackups,
				MaxAge:     opt.MaxAgeDays,
				LocalTime:  true,
			})
		}
	}

	core := zapcore.NewCore(encoder, w, parseZapLevel(opt.Level))
	return zap.New(core, zap.AddCaller())
}

// nopLogger is the default when a Connection or Listener is constructed
// without WithLogger: silent, but every call site that would otherwise log
// still runs, so switching in a real logger later needs no code changes.
func nopLogger() *zap.Logger { return zap.NewNop() }
