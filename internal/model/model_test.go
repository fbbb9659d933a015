package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMailboxDueAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	never := Mailbox{PollIntervalSec: 60}
	assert.True(t, never.DueAt(now), "never-synced mailbox is due")

	recent := now.Add(-30 * time.Second)
	fresh := Mailbox{PollIntervalSec: 60, LastSyncAt: &recent}
	assert.False(t, fresh.DueAt(now))

	exact := now.Add(-60 * time.Second)
	boundary := Mailbox{PollIntervalSec: 60, LastSyncAt: &exact}
	assert.True(t, boundary.DueAt(now), "interval boundary is inclusive")
}

func TestClampPollInterval(t *testing.T) {
	assert.Equal(t, MinPollIntervalSec, ClampPollInterval(0))
	assert.Equal(t, MinPollIntervalSec, ClampPollInterval(14))
	assert.Equal(t, 15, ClampPollInterval(15))
	assert.Equal(t, 600, ClampPollInterval(600))
	assert.Equal(t, MaxPollIntervalSec, ClampPollInterval(3601))
}

func TestRouteStatusTerminal(t *testing.T) {
	assert.False(t, StatusNew.Terminal())
	assert.True(t, StatusRouted.Terminal())
	assert.True(t, StatusTriage.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
