// Package metrics exposes the delivery metrics endpoint.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/notify-scheduler/internal/api/respond"
	"github.com/aliskhannn/notify-scheduler/internal/metrics"
	"github.com/aliskhannn/notify-scheduler/internal/model"
)

type snapshotter interface {
	Snapshot(worker string, channel model.Channel, period time.Duration) metrics.Snapshot
}

// Handler serves aggregated delivery metrics.
type Handler struct {
	aggregator snapshotter
}

func NewHandler(a snapshotter) *Handler {
	return &Handler{aggregator: a}
}

// Snapshot handles HTTP GET requests for metrics. Optional query
// parameters narrow the result: worker and channel filter the counters,
// period restricts them to a trailing window, given as seconds
// ("period=900") or a Go duration ("period=15m").
func (h *Handler) Snapshot(c *ginext.Context) {
	var channel model.Channel
	if ch := c.Query("channel"); ch != "" {
		parsed, err := model.ParseChannel(ch)
		if err != nil {
			respond.Fail(c.Writer, http.StatusBadRequest, err)
			return
		}
		channel = parsed
	}

	var period time.Duration
	if p := c.Query("period"); p != "" {
		parsed, err := parsePeriod(p)
		if err != nil || parsed <= 0 {
			respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid period"))
			return
		}
		period = parsed
	}

	respond.OK(c.Writer, h.aggregator.Snapshot(c.Query("worker"), channel, period))
}

// parsePeriod reads a trailing-window length: a bare integer is
// seconds, anything else must be a Go duration.
func parsePeriod(value string) (time.Duration, error) {
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	return time.ParseDuration(value)
}
