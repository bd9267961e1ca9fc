package stats

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsUpdater(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.Run()
	defer su.Stop()

	su.RegisterMetric("NumConnections")
	assert.NotNil(t, su.vars.Get("NumConnections"), "expected metric to be registered")

	su.Incr("NumConnections")
	su.Decr("NumConnections")
}
