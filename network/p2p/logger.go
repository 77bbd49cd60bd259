// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-witness
//
// go-witness is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-witness is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-witness.  If not, see <https://www.gnu.org/licenses/>.

package p2p

import (
	p2plogging "github.com/ipfs/go-log/v2"
	"go.uber.org/zap/zapcore"

	"github.com/witnessnet/go-witness/logging"
)

var levelsMap = map[zapcore.Level]logging.Level{
	zapcore.DebugLevel:  logging.Debug,
	zapcore.InfoLevel:   logging.Info,
	zapcore.WarnLevel:   logging.Warn,
	zapcore.ErrorLevel:  logging.Error,
	zapcore.DPanicLevel: logging.Error,
	zapcore.PanicLevel:  logging.Error,
	zapcore.FatalLevel:  logging.Error,
}

// loggingCore implements zapcore.Core on top of a logging.Logger so that
// libp2p log lines end up in the node log.
type loggingCore struct {
	log    logging.Logger
	fields []zapcore.Field
}

// EnableP2PLogging routes libp2p logging into log, at level l and above.
func EnableP2PLogging(log logging.Logger, l logging.Level) {
	for p2pLevel, logLevel := range levelsMap {
		if logLevel == l {
			p2plogging.SetAllLoggers(p2plogging.LogLevel(p2pLevel))
			break
		}
	}
	p2plogging.SetPrimaryCore(&loggingCore{log: log.With("libp2p", true)})
}

func (c *loggingCore) Enabled(l zapcore.Level) bool {
	return c.log.IsLevelEnabled(levelsMap[l])
}

func (c *loggingCore) With(fields []zapcore.Field) zapcore.Core {
	return &loggingCore{
		log:    c.log,
		fields: append(append([]zapcore.Field(nil), c.fields...), fields...),
	}
}

func (c *loggingCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *loggingCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	loggingFields := make(logging.Fields, len(enc.Fields)+2)
	for k, v := range enc.Fields {
		loggingFields[k] = v
	}
	loggingFields["subsystem"] = e.LoggerName
	if e.Caller.Defined {
		loggingFields["caller"] = e.Caller.TrimmedPath()
	}
	event := c.log.WithFields(loggingFields)

	switch levelsMap[e.Level] {
	case logging.Debug:
		event.Debug(e.Message)
	case logging.Info:
		event.Info(e.Message)
	case logging.Warn:
		event.Warn(e.Message)
	default:
		event.Error(e.Message)
	}
	return nil
}

func (c *loggingCore) Sync() error {
	return nil
}
