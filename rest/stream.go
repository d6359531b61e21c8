// Copyright 2026 The Tandem Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/tandem-run/tandem"
)

const (
	streamPoll      = time.Second
	streamWriteWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// streamLog follows the output of a process over a websocket.  The
// records already kept are sent first, then every new one as it arrives,
// one JSON LogRecord per message.  Records that scroll out of the ring
// between two polls are lost.
func (h *Handler) streamLog(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["process"]
	if _, e := h.findProcess(name); e != nil {
		h.writeError(w, e)
		return
	}
	log := h.src.Output().Log(name)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		// We never expect messages; this only notices the peer going away.
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	var etag, sent int64
	for ctx.Err() == nil {
		recs, id := log.GetRecords(etag)
		etag = id
		for _, rec := range recs {
			if rec.Id <= sent {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
			sent = rec.Id
		}
		log.Watch(etag, streamPoll)
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(streamWriteWait))
}

// Follow streams the output of the named process, starting with the
// records the server still keeps, calling fn for each.  It returns when
// ctx is done (with ctx's error), when fn fails, or when the connection
// breaks.
func (c *Client) Follow(ctx context.Context, name string, fn func(tandem.LogRecord) error) error {
	u := c.url(name) + "/log/stream"
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	conn, res, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		if res != nil && res.StatusCode != http.StatusSwitchingProtocols {
			return &Error{Code: res.StatusCode, Message: res.Status}
		}
		return err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var rec tandem.LogRecord
		if err := conn.ReadJSON(&rec); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
