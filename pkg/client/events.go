package client

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/calib-tools/calib/pkg/events"
)

// SubscribeEvents streams daemon events until ctx is cancelled or the daemon
// closes the stream, at which point the returned channel is closed.
func (c *Client) SubscribeEvents(ctx context.Context) <-chan events.Event {
	out := make(chan events.Event, 16)

	go func() {
		defer close(out)

		body, err := c.Stream(ctx, "/events")
		if err != nil {
			if ctx.Err() == nil {
				logrus.WithError(translate(err)).Warn("failed to subscribe to daemon events")
			}
			return
		}
		defer body.Close()

		// Unblock the scanner when ctx is cancelled.
		stop := context.AfterFunc(ctx, func() { _ = body.Close() })
		defer stop()

		readEvents(body, func(ev events.Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	return out
}

// readEvents parses a text/event-stream body and calls emit for every event
// until emit returns false or the stream ends.
func readEvents(r io.Reader, emit func(events.Event) bool) {
	var (
		name string
		data []string
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()

		switch {
		case line == "":
			if name == "" && len(data) == 0 {
				continue
			}
			ev := events.Event{Name: name, Data: json.RawMessage(strings.Join(data, "\n"))}
			name, data = "", nil
			if !emit(ev) {
				return
			}
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := sc.Err(); err != nil {
		logrus.WithError(err).Debug("event stream ended")
	}
}
