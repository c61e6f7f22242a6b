package logsvc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/user"
)

func TestRollbarLogger(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	logger := NewRollbarLogger(zap.New(obsCore), &core.Config{Env: "TEST"})
	logger.Enable(false)

	usr := user.User{ID: "f6f3c1c6-4b1e-4bb2-9f0b-2f1a0d1f7c3e", Username: "jdoe"}
	logger.Error("reordering modules", errors.New("boom"), usr, map[string]interface{}{"course_id": 3})
	logger.Info("Application initializing")

	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "reordering modules", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, usr.ID, fields["user_id"])
	assert.EqualValues(t, 3, fields["course_id"])

	assert.Equal(t, "Application initializing", logs.All()[1].Message)
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := RollbarLogger{}
	usr := user.User{ID: "1", Username: "jdoe"}
	err := errors.New("boom")

	args := logger.prepare("msg", []interface{}{err, usr, usr})
	assert.Equal(t, []interface{}{"msg", err}, args, "users are not forwarded")
}
