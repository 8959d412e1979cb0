package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples entries below Error per tick. Error and above
// bypass the sampler.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	return &errorBypassCore{
		Core: zapcore.NewSamplerWithOptions(core, cfg.Tick, cfg.Initial, cfg.Thereafter),
		raw:  core,
	}
}

// errorBypassCore routes Error and above to raw, everything else to the
// embedded sampler.
type errorBypassCore struct {
	zapcore.Core
	raw zapcore.Core
}

func (c *errorBypassCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if e.Level >= zapcore.ErrorLevel {
		return c.raw.Check(e, ce)
	}
	return c.Core.Check(e, ce)
}

func (c *errorBypassCore) With(fields []zapcore.Field) zapcore.Core {
	return &errorBypassCore{
		Core: c.Core.With(fields),
		raw:  c.raw.With(fields),
	}
}
