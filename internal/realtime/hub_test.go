package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventPurchase, Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventAlert, EventRiskChange},
	}}

	alertEvent := &Event{Type: EventAlert}
	riskEvent := &Event{Type: EventRiskChange}
	purchaseEvent := &Event{Type: EventPurchase}

	if !h.shouldSend(client, alertEvent) {
		t.Error("Should receive alert events")
	}
	if !h.shouldSend(client, riskEvent) {
		t.Error("Should receive risk_change events")
	}
	if h.shouldSend(client, purchaseEvent) {
		t.Error("Should NOT receive purchase events")
	}
}

func TestShouldSend_PersonFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		PersonIDs: []string{"per_watch"},
	}}

	matching := &Event{
		Type: EventPurchase,
		Data: map[string]interface{}{"personId": "per_watch", "units": 5.0},
	}
	notMatching := &Event{
		Type: EventPurchase,
		Data: map[string]interface{}{"personId": "per_other", "units": 5.0},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on watched person")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match other persons")
	}
}

func TestShouldSend_MinUnitsFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		MinUnits: 10.0,
	}}

	large := &Event{
		Type: EventPurchase,
		Data: map[string]interface{}{"units": 32.1},
	}
	small := &Event{
		Type: EventPurchase,
		Data: map[string]interface{}{"units": 5.2},
	}
	alert := &Event{
		Type: EventAlert,
		Data: map[string]interface{}{"message": "test"},
	}

	if !h.shouldSend(client, large) {
		t.Error("Should receive large purchase")
	}
	if h.shouldSend(client, small) {
		t.Error("Should NOT receive small purchase")
	}
	if !h.shouldSend(client, alert) {
		t.Error("MinUnits filter should only apply to purchases")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()

	// No filters, not AllEvents
	client := &Client{sub: Subscription{}}

	event := &Event{Type: EventPurchase}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription (no filters) should receive events")
	}
}

func TestShouldSend_NonMapData(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		PersonIDs: []string{"per_watch"},
	}}

	// Event with non-map data should not crash
	event := &Event{
		Type: EventAlert,
		Data: "string data not a map",
	}

	// Person filter skips non-map data (can't extract the ID), so event passes through
	if !h.shouldSend(client, event) {
		t.Error("Non-map data should pass through when person filter can't extract the ID")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_BroadcastAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(&Event{Type: EventPurchase, Timestamp: time.Now()})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	// Peak should still be 1
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_BroadcastToClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(&Event{
		Type:      EventPurchase,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"personId": "per_1", "units": 32.1},
	})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_FilteredBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants alerts
	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{EventTypes: []EventType{EventAlert}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// Send a purchase event (should be filtered out)
	h.Broadcast(&Event{Type: EventPurchase, Timestamp: time.Now()})
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive purchase event")
	default:
		// Good - filtered out
	}

	// Send an alert event (should be received)
	h.Broadcast(&Event{Type: EventAlert, Timestamp: time.Now()})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive alert event")
	}
}
