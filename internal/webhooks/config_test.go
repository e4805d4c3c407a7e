package webhooks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zircote/subcog/internal/model"
)

func TestEndpointMatchesEmptyListsMatchAll(t *testing.T) {
	ep := Endpoint{Enabled: true}
	event := model.MemoryEvent{Type: model.EventCaptured}
	assert.True(t, ep.Matches(event, "project"))
}

func TestEndpointMatchesWildcard(t *testing.T) {
	ep := Endpoint{Enabled: true, Events: []string{"*"}, Scopes: []string{"*"}}
	event := model.MemoryEvent{Type: model.EventDeleted}
	assert.True(t, ep.Matches(event, "org"))
}

func TestEndpointMatchesSpecificEventAndScope(t *testing.T) {
	ep := Endpoint{Enabled: true, Events: []string{"captured", "consolidated"}, Scopes: []string{"project"}}

	assert.True(t, ep.Matches(model.MemoryEvent{Type: model.EventCaptured}, "project"))
	assert.False(t, ep.Matches(model.MemoryEvent{Type: model.EventDeleted}, "project"))
	assert.False(t, ep.Matches(model.MemoryEvent{Type: model.EventCaptured}, "user"))
}

func TestEndpointMatchesDisabled(t *testing.T) {
	ep := Endpoint{Enabled: false}
	assert.False(t, ep.Matches(model.MemoryEvent{Type: model.EventCaptured}, "project"))
}

func TestRetryConfigDelayBackoffAndCap(t *testing.T) {
	cfg := RetryConfig{BaseDelayMs: 500}

	assert.Equal(t, 500*time.Millisecond, cfg.Delay(1))
	assert.Equal(t, time.Second, cfg.Delay(2))
	assert.Equal(t, 2*time.Second, cfg.Delay(3))

	cfg.BaseDelayMs = 60000
	assert.Equal(t, 60*time.Second, cfg.Delay(5), "delay must cap at 60s")
}
