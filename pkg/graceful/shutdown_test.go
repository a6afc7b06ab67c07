package graceful

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/pkg/logger"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestShutdown_StopsComponentsInOrderThenClosesDB(t *testing.T) {
	var order []string
	sm := NewShutdownManager(nil, closerFunc(func() error {
		order = append(order, "db")
		return nil
	}), time.Second, logger.NewLogger(zap.NewNop()))

	sm.Register(ShutdownFunc(func(time.Duration) error {
		order = append(order, "scheduler")
		return nil
	}))
	sm.Register(ShutdownFunc(func(time.Duration) error {
		order = append(order, "dispatcher")
		return errors.New("queue not drained")
	}))
	sm.Register(ShutdownFunc(func(timeout time.Duration) error {
		assert.Equal(t, time.Second, timeout)
		order = append(order, "gateway")
		return nil
	}))

	sm.Shutdown()

	assert.Equal(t, []string{"scheduler", "dispatcher", "gateway", "db"}, order)
}
