//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"testing"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestPlaceOrder_EmptyItems(t *testing.T) {
	resp := doPost(t, "/api/orders", placeOrderRequest{TableID: "t-01"})
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestPlaceOrder_UnknownTable(t *testing.T) {
	resp := doPost(t, "/api/orders", placeOrderRequest{
		TableID: "t-99",
		Items:   []lineRequest{{MenuItemID: "m-pho-bo", Quantity: 1}},
	})
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusNotFound)
}

func TestPlaceOrder_UnknownMenuItem(t *testing.T) {
	resp := doPost(t, "/api/orders", placeOrderRequest{
		TableID: "t-01",
		Items:   []lineRequest{{MenuItemID: "m-unicorn", Quantity: 1}},
	})
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusNotFound)
}

func TestPlaceOrder_UnavailableItem(t *testing.T) {
	resp := doPost(t, "/api/orders", placeOrderRequest{
		TableID: "t-01",
		Items:   []lineRequest{{MenuItemID: "m-seasonal-special", Quantity: 1}},
	})
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusUnprocessableEntity)
}

func TestPlaceOrder_UnknownModifier(t *testing.T) {
	resp := doPost(t, "/api/orders", placeOrderRequest{
		TableID: "t-01",
		Items:   []lineRequest{{MenuItemID: "m-pho-bo", Quantity: 1, Modifiers: []string{"gold leaf"}}},
	})
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusUnprocessableEntity)
}

// TestOrderLifecycle drives one order from placement to payment on table t-01.
func TestOrderLifecycle(t *testing.T) {
	// Place: 2x Pho Bo (50000) with extra beef (10000) = 120000.
	resp := doPost(t, "/api/orders", placeOrderRequest{
		TableID:      "t-01",
		CustomerName: "An",
		Items:        []lineRequest{{MenuItemID: "m-pho-bo", Quantity: 2, Modifiers: []string{"extra beef"}}},
	})
	wantStatus(t, resp, http.StatusCreated)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if !uuidPattern.MatchString(o.ID) {
		t.Fatalf("order ID %q is not a valid UUID", o.ID)
	}
	if o.Status != "pending" {
		t.Fatalf("status: got %q, want pending", o.Status)
	}
	wantAmount(t, "subtotal", o.Subtotal, "120000")
	if len(o.Items) != 1 {
		t.Fatalf("items: got %+v", o.Items)
	}
	wantAmount(t, "line_total", o.Items[0].LineTotal, "120000")

	// A second placement on the same table merges, not duplicates.
	resp = doPost(t, "/api/orders", placeOrderRequest{
		TableID: "t-01",
		Items:   []lineRequest{{MenuItemID: "m-banh-mi", Quantity: 1}},
	})
	wantStatus(t, resp, http.StatusOK)
	merged := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if merged.ID != o.ID {
		t.Fatalf("merge created a new order: %q != %q", merged.ID, o.ID)
	}
	wantAmount(t, "merged subtotal", merged.Subtotal, "150000")
	if len(merged.Items) != 2 {
		t.Errorf("merged items: got %d, want 2", len(merged.Items))
	}

	// Bill preview: 150000 + 10% tax.
	resp = doGet(t, "/api/tables/t-01/bill")
	wantStatus(t, resp, http.StatusOK)
	bill := decodeJSON[billResponse](t, resp)
	resp.Body.Close()
	wantAmount(t, "bill subtotal", bill.Subtotal, "150000")
	wantAmount(t, "bill tax", bill.Tax, "15000")
	wantAmount(t, "bill total", bill.Total, "165000")

	// Skipping accept is rejected.
	resp = doPost(t, "/api/orders/"+o.ID+"/prepare", nil)
	wantStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()

	for _, step := range []struct {
		path, wantOrder, wantItem string
	}{
		{"accept", "accepted", "pending"},
		{"prepare", "preparing", "preparing"},
		{"ready", "ready", "ready"},
		{"serve", "served", "ready"},
	} {
		resp = doPost(t, "/api/orders/"+o.ID+"/"+step.path, nil)
		wantStatus(t, resp, http.StatusOK)
		got := decodeJSON[orderResponse](t, resp)
		resp.Body.Close()
		if got.Status != step.wantOrder {
			t.Fatalf("%s: order status %q, want %q", step.path, got.Status, step.wantOrder)
		}
		if got.Items[0].Status != step.wantItem {
			t.Errorf("%s: item status %q, want %q", step.path, got.Items[0].Status, step.wantItem)
		}
	}

	// Bill request then payment.
	resp = doPost(t, "/api/orders/"+o.ID+"/bill", nil)
	wantStatus(t, resp, http.StatusOK)
	billed := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if !billed.BillRequested {
		t.Error("bill_requested not set")
	}

	resp = doPost(t, "/api/orders/"+o.ID+"/payment", map[string]string{"method": "cash"})
	wantStatus(t, resp, http.StatusOK)
	paid := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if paid.Status != "paid" || paid.PaymentMethod != "cash" {
		t.Errorf("paid: got %+v", paid)
	}
	for _, it := range paid.Items {
		if it.Status != "completed" {
			t.Errorf("item %s: status %q, want completed", it.ID, it.Status)
		}
	}

	// Paid orders accept nothing further.
	resp = doPost(t, "/api/orders/"+o.ID+"/bill", nil)
	wantStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()

	// The table is free again.
	resp = doGet(t, "/api/tables/t-01/bill")
	wantStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

// TestKitchenFlow exercises the per-item pipeline and the projections on t-02.
func TestKitchenFlow(t *testing.T) {
	resp := doPost(t, "/api/orders", placeOrderRequest{
		TableID: "t-02",
		Items: []lineRequest{
			{MenuItemID: "m-spring-rolls", Quantity: 1},
			{MenuItemID: "m-iced-coffee", Quantity: 2},
		},
	})
	wantStatus(t, resp, http.StatusCreated)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	resp = doPost(t, "/api/orders/"+o.ID+"/accept", nil)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// The order shows up on the kitchen queue.
	resp = doGet(t, "/api/kitchen/tickets")
	wantStatus(t, resp, http.StatusOK)
	tickets := decodeJSON[[]ticketResponse](t, resp)
	resp.Body.Close()

	var found *ticketResponse
	for i := range tickets {
		if tickets[i].OrderID == o.ID {
			found = &tickets[i]
		}
	}
	if found == nil {
		t.Fatalf("order %s not on kitchen queue", o.ID)
	}
	if len(found.Items) != 2 {
		t.Errorf("ticket items: got %d, want 2", len(found.Items))
	}

	// Kitchen picks up the first line; the order follows automatically.
	itemID := o.Items[0].ID
	resp = doJSON(t, http.MethodPatch, "/api/items/"+itemID, map[string]string{"status": "preparing"})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doGet(t, "/api/orders/"+o.ID)
	wantStatus(t, resp, http.StatusOK)
	got := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if got.Status != "preparing" {
		t.Fatalf("order status after item pickup: %q, want preparing", got.Status)
	}

	// Finish the line and it appears on the waiter ready queue.
	resp = doJSON(t, http.MethodPatch, "/api/items/"+itemID, map[string]string{"status": "ready"})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doGet(t, "/api/waiter/ready")
	wantStatus(t, resp, http.StatusOK)
	ready := decodeJSON[[]struct {
		TableID string       `json:"table_id"`
		Item    itemResponse `json:"item"`
	}](t, resp)
	resp.Body.Close()

	foundReady := false
	for _, ri := range ready {
		if ri.Item.ID == itemID {
			foundReady = true
			if ri.TableID != "t-02" {
				t.Errorf("ready item table: got %q, want t-02", ri.TableID)
			}
		}
	}
	if !foundReady {
		t.Fatalf("item %s not on ready queue", itemID)
	}

	// Serve it and it leaves the queue.
	resp = doPost(t, "/api/items/"+itemID+"/serve", nil)
	wantStatus(t, resp, http.StatusOK)
	served := decodeJSON[itemResponse](t, resp)
	resp.Body.Close()
	if served.Status != "served" {
		t.Errorf("served item status: %q", served.Status)
	}

	// Regressions are rejected.
	resp = doJSON(t, http.MethodPatch, "/api/items/"+itemID, map[string]string{"status": "preparing"})
	wantStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()

	// Close out the table.
	resp = doPost(t, "/api/orders/"+o.ID+"/payment", map[string]string{"method": "card"})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestRejectOrder(t *testing.T) {
	resp := doPost(t, "/api/orders", placeOrderRequest{
		TableID: "t-03",
		Items:   []lineRequest{{MenuItemID: "m-banh-mi", Quantity: 1}},
	})
	wantStatus(t, resp, http.StatusCreated)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	resp = doPost(t, "/api/orders/"+o.ID+"/reject", nil)
	wantStatus(t, resp, http.StatusOK)
	rejected := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if rejected.Status != "cancelled" {
		t.Fatalf("status: got %q, want cancelled", rejected.Status)
	}
	for _, it := range rejected.Items {
		if it.Status != "cancelled" {
			t.Errorf("item %s: status %q, want cancelled", it.ID, it.Status)
		}
	}

	// Cancelled orders are terminal.
	resp = doPost(t, "/api/orders/"+o.ID+"/accept", nil)
	wantStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGet(t, "/api/orders/00000000-0000-0000-0000-000000000000")
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusNotFound)

	body := decodeJSON[errorResponse](t, resp)
	if body.Code != http.StatusNotFound || body.Message == "" {
		t.Errorf("error body: %+v", body)
	}
}
