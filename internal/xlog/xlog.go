// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package xlog provides the structured, leveled logger used throughout the
// segment core. Most call sites are Trace-gated the same way
// HistoryReaderV3's debug prints were: cheap to leave in, silent by default.
package xlog

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	base      = zap.NewNop()
	traceFlag atomic.Bool
)

// Configure installs the process-wide base logger. Call it once at startup,
// before any logging happens: it replaces the package-level logger variable
// without synchronization, and every later log call, from any segment, goes
// through the new logger.
func Configure(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	base = l
}

// SetTrace toggles the verbose per-operation trace logging used by
// Segment when constructed with Config.Trace.
func SetTrace(on bool) { traceFlag.Store(on) }

func tracing() bool { return traceFlag.Load() }

// L returns the base logger for ad-hoc use.
func L() *zap.Logger { return base }

// Trace logs msg at debug level with fields, but only when trace mode is on.
// Mirrors the "if(trace) fmt.Printf(...)" pattern from HistoryReaderV3.
func Trace(msg string, fields ...zap.Field) {
	if tracing() {
		base.Debug(msg, fields...)
	}
}

// Warn logs at warn level unconditionally.
func Warn(msg string, fields ...zap.Field) { base.Warn(msg, fields...) }

// Error logs at error level unconditionally.
func Error(msg string, fields ...zap.Field) { base.Error(msg, fields...) }
