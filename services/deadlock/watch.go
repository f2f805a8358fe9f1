// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deadlock

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// watchHub tracks websocket subscribers interested in state changes.
type watchHub struct {
	mu          sync.Mutex
	subscribers map[string]chan Snapshot
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
}

// subscribe registers a new watcher and returns its ID and channel.
func (h *watchHub) subscribe() (string, chan Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers == nil {
		h.subscribers = make(map[string]chan Snapshot)
	}
	id := uuid.NewString()
	// Buffered so a slow consumer drops updates instead of stalling writers.
	ch := make(chan Snapshot, 8)
	h.subscribers[id] = ch
	return id, ch
}

// unsubscribe removes a watcher.
func (h *watchHub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
}

// publish fans a snapshot out to all subscribers without blocking. A
// watcher whose buffer is full misses this update and catches up on the
// next one; every snapshot is complete, so skipping is harmless.
func (h *watchHub) publish(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// broadcast pushes the current state to every watcher. Called by the
// service after each committed mutation.
func (s *Service) broadcast() {
	s.hub.mu.Lock()
	empty := len(s.hub.subscribers) == 0
	s.hub.mu.Unlock()
	if empty {
		return
	}
	s.hub.publish(s.registry.Snapshot())
}

// HandleWatch handles GET /v1/deadlock/watch.
//
// Description:
//
//	Upgrades the connection to a websocket and streams the full state
//	snapshot: once on connect, then after every committed mutation. This
//	is the feed a visualization layer renders from; each message is the
//	same JSON shape as GET /v1/deadlock/state.
func (h *Handlers) HandleWatch(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	id, updates := h.svc.hub.subscribe()
	defer h.svc.hub.unsubscribe(id)
	logger := slog.With("watcher_id", id)
	logger.Info("Watch client connected")

	// Initial state so the client can render immediately.
	if err := ws.WriteJSON(h.svc.State(c.Request.Context())); err != nil {
		logger.Warn("Failed to write initial snapshot", "error", err)
		return
	}

	// Drain reads so close frames are processed; the feed is write-only.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			logger.Info("Watch client disconnected")
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := ws.WriteJSON(snap); err != nil {
				logger.Info("Watch client write failed", "error", err.Error())
				return
			}
		}
	}
}
