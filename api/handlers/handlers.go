// Package handlers implements the HTTP surface of the api binary:
// sweeper registration, observation ingest, the read projections, the
// websocket fanout and the CSV dump.
package handlers

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/paissahouse/paissadb/api/config"
	"github.com/paissahouse/paissadb/queue"
)

// eventQueue fronts every Redis interaction of the handlers. Set from
// InitQueue once config.LoadRedis has run.
var eventQueue *queue.Queue

// clock drives ingest timestamp validation and the websocket timers.
var clock clockwork.Clock = clockwork.NewRealClock()

// InitQueue wires the handlers to the shared Redis client and returns
// the queue for main to hand to the fanout.
func InitQueue() *queue.Queue {
	eventQueue = queue.New(config.Redis)
	return eventQueue
}

// SetClock replaces the handlers clock, for tests that need to control
// timestamp validation or viewer expiry.
func SetClock(c clockwork.Clock) {
	clock = c
}

// unixSeconds converts a time to the float seconds used throughout the
// wire format.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// GetIPFromRequest extracts the client IP from a request, preferring
// proxy headers over the socket address.
func GetIPFromRequest(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// Take the first IP in the list
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
