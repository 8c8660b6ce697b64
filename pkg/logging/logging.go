package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

type Opts struct {
	Verbose bool
	// Encoding is one of "console" or "json". Empty means console.
	Encoding string
	// Color is one of "auto", "always", "never". Only used for console encoding.
	Color string
}

func (opts Opts) encoder() zapcore.Encoder {
	switch opts.Encoding {
	case "json":
		if opts.Verbose {
			return zapcore.NewJSONEncoder(zap.NewDevelopmentEncoderConfig())
		}
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	case "console", "":
		useColor := false
		switch opts.Color {
		case "always", "on":
			useColor = true
		case "never", "off":
			useColor = false
		default:
			useColor = term.IsTerminal(int(os.Stderr.Fd()))
		}
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = TimeOffsetFormatter(time.Now())
		if useColor {
			cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		return zapcore.NewConsoleEncoder(cfg)

	default:
		panic(fmt.Errorf("unknown encoding %q", opts.Encoding))
	}
}

func (opts Opts) NewLogger() *zap.Logger {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Verbose {
		level.SetLevel(zap.DebugLevel)
	}
	core := zapcore.NewCore(opts.encoder(), zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

// TimeOffsetFormatter formats log times as an offset from start. CLI runs are
// short, so an offset reads better than wall-clock timestamps.
func TimeOffsetFormatter(start time.Time) zapcore.TimeEncoder {
	return func(t time.Time, e zapcore.PrimitiveArrayEncoder) {
		diff := t.Sub(start)
		switch {
		case diff < time.Second:
			e.AppendString(fmt.Sprintf("%4dms", diff.Milliseconds()))
		case diff < 5*time.Minute:
			e.AppendString(fmt.Sprintf("%5.1fs", diff.Seconds()))
		default:
			e.AppendString(fmt.Sprintf("%5.1fm", diff.Minutes()))
		}
	}
}
