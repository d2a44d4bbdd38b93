package notesclient

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Event is one server-sent change notification.
type Event struct {
	Type string
	// ID is the note id for note.* events.
	ID string
}

// Events streams the caller's change events to fn until ctx is cancelled
// or the server closes the stream.
func (c *Client) Events(ctx context.Context, fn func(Event)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// Streams outlive the default request timeout.
	hc := *c.http
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Message: resp.Status}
	}

	var ev Event
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if ev.Type != "" {
				fn(ev)
			}
			ev = Event{}
		case strings.HasPrefix(line, "event:"):
			ev.Type = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			var data struct {
				ID string `json:"id"`
			}
			if json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &data) == nil {
				ev.ID = data.ID
			}
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return sc.Err()
}
