package logsvc

import (
	"go.uber.org/zap"

	"github.com/trezcool/educa/core"
)

// NewZapLogger builds a named zap logger: human friendly in debug mode, JSON otherwise.
func NewZapLogger(name string, conf *core.Config) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if conf.Debug {
		cfg = zap.NewDevelopmentConfig()
	}
	if conf.TestMode {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	zl, err := cfg.Build(zap.Fields(zap.String("env", conf.Env), zap.String("build", conf.Build)))
	if err != nil {
		return nil, err
	}
	return zl.Named(name), nil
}
