// Package logging builds the JSON-line logger shared by the relay and pinctl.
// Lines carry ts, level and msg keys followed by structured fields.
package logging

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger that writes one JSON object per line to w, stamping
// timestamps in loc. A nil loc means UTC.
func New(w io.Writer, loc *time.Location) *zap.Logger {
	if loc == nil {
		loc = time.UTC
	}
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		NameKey:        "component",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.In(loc).Format(time.RFC3339Nano))
		},
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), zap.DebugLevel)
	return zap.New(core, zap.AddStacktrace(zap.DPanicLevel))
}

// Stdout is New bound to os.Stdout.
func Stdout(loc *time.Location) *zap.Logger {
	return New(os.Stdout, loc)
}
