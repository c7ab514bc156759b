//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, path string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL+path, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) eventFrame {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(10 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}

	var frame eventFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}
	return frame
}

func TestWS_UnknownRoleRejected(t *testing.T) {
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws/role/barista", nil)
	if err == nil {
		t.Fatal("expected dial to fail for unknown role")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 handshake response, got %+v", resp)
	}
	resp.Body.Close()
}

// TestWS_TableAndWaiterReceivePlacement subscribes a guest device and a waiter
// display, places an order, and checks both get their events.
func TestWS_TableAndWaiterReceivePlacement(t *testing.T) {
	table := dialWS(t, "/ws/table/t-04")
	waiter := dialWS(t, "/ws/role/waiter")

	// Subscription must be registered before the placement publishes.
	time.Sleep(500 * time.Millisecond)

	resp := doPost(t, "/api/orders", placeOrderRequest{
		TableID: "t-04",
		Items:   []lineRequest{{MenuItemID: "m-iced-coffee", Quantity: 1}},
	})
	wantStatus(t, resp, http.StatusCreated)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	waiterFrame := readEvent(t, waiter)
	if waiterFrame.Event != "order:new" {
		t.Errorf("waiter event: got %q, want order:new", waiterFrame.Event)
	}
	if waiterFrame.Topic != "role:waiter" {
		t.Errorf("waiter topic: got %q", waiterFrame.Topic)
	}

	tableFrame := readEvent(t, table)
	if tableFrame.Event != "order:update" {
		t.Errorf("table event: got %q, want order:update", tableFrame.Event)
	}
	if tableFrame.Topic != "table:t-04" {
		t.Errorf("table topic: got %q", tableFrame.Topic)
	}

	var payload orderResponse
	if err := json.Unmarshal(tableFrame.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ID != o.ID {
		t.Errorf("payload order: got %q, want %q", payload.ID, o.ID)
	}

	// Kitchen gets the new task on accept; the guest sees the status move.
	kitchen := dialWS(t, "/ws/role/kitchen")
	time.Sleep(500 * time.Millisecond)

	resp = doPost(t, "/api/orders/"+o.ID+"/accept", nil)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	kitchenFrame := readEvent(t, kitchen)
	if kitchenFrame.Event != "order:new_task" {
		t.Errorf("kitchen event: got %q, want order:new_task", kitchenFrame.Event)
	}

	tableFrame = readEvent(t, table)
	if tableFrame.Event != "order:update" {
		t.Errorf("table event after accept: got %q", tableFrame.Event)
	}

	// Close out the table for later tests.
	resp = doPost(t, "/api/orders/"+o.ID+"/payment", map[string]string{"method": "cash"})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

// TestWS_DisconnectedClientMissesEvents: delivery is at-most-once with no
// replay, so a reconnecting client only sees what happens after it subscribed.
func TestWS_DisconnectedClientMissesEvents(t *testing.T) {
	first := dialWS(t, "/ws/table/t-04")
	first.Close()

	resp := doPost(t, "/api/orders", placeOrderRequest{
		TableID: "t-04",
		Items:   []lineRequest{{MenuItemID: "m-banh-mi", Quantity: 1}},
	})
	wantStatus(t, resp, http.StatusCreated)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	// A fresh subscriber starts from silence and re-fetches current state.
	second := dialWS(t, "/ws/table/t-04")
	time.Sleep(500 * time.Millisecond)

	resp = doGet(t, "/api/tables/t-04/orders")
	wantStatus(t, resp, http.StatusOK)
	open := decodeJSON[[]orderResponse](t, resp)
	resp.Body.Close()
	if len(open) != 1 || open[0].ID != o.ID {
		t.Fatalf("open orders: %+v", open)
	}

	// The next mutation reaches the new subscriber.
	resp = doPost(t, "/api/orders/"+o.ID+"/payment", map[string]string{"method": "cash"})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	frame := readEvent(t, second)
	if frame.Event != "order:paid" {
		t.Errorf("event: got %q, want order:paid", frame.Event)
	}
}
