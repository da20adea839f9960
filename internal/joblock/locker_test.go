package joblock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewLockerNilClient(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
}

func TestTryLockWithoutClient(t *testing.T) {
	var l *Locker
	_, ok, err := l.TryLock(context.Background(), "overdue_sweep", time.Minute)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestReleaseWithoutClient(t *testing.T) {
	var l *Locker
	assert.NoError(t, l.Release(context.Background(), "overdue_sweep", "token"))

	// Blank job or token is a no-op, not an error.
	assert.NoError(t, l.Release(context.Background(), "", ""))
}
