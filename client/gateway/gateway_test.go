package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	statex "github.com/partassist/client-go/client/state"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestSendChatTurnMapsReply(t *testing.T) {
	t.Parallel()

	var gotReq chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{
			"message": "This bin fits your model.",
			"parts": [{
				"partselect_number": "PS11752778",
				"manufacturer_part_number": "WPW10321304",
				"name": "Refrigerator Door Shelf Bin",
				"brand": "Whirlpool",
				"price": 36.08,
				"in_stock": true,
				"installation": {"difficulty": "easy", "time": "15 min"}
			}],
			"query_type": "part_lookup",
			"confidence": 0.92
		}`)
	})

	history := []statex.Message{
		statex.NewUserMessage("hello", testNow),
		statex.NewAssistantMessage("hi, what do you need?", nil, testNow),
	}
	reply, err := client.SendChatTurn(context.Background(), "need a door bin", history)
	if err != nil {
		t.Fatalf("SendChatTurn() error = %v", err)
	}

	if gotReq.Message != "need a door bin" {
		t.Errorf("request message = %q", gotReq.Message)
	}
	if len(gotReq.ConversationHistory) != 2 {
		t.Fatalf("request history = %d entries, want 2", len(gotReq.ConversationHistory))
	}
	if gotReq.ConversationHistory[0].Role != "user" || gotReq.ConversationHistory[1].Role != "assistant" {
		t.Errorf("history roles = %+v", gotReq.ConversationHistory)
	}

	if reply.Content != "This bin fits your model." {
		t.Errorf("reply content = %q", reply.Content)
	}
	if reply.QueryType != "part_lookup" || reply.Confidence != 0.92 {
		t.Errorf("reply meta = %q/%v", reply.QueryType, reply.Confidence)
	}
	if len(reply.Products) != 1 {
		t.Fatalf("reply products = %d, want 1", len(reply.Products))
	}
	p := reply.Products[0]
	if p.PartNumber != "PS11752778" || p.Price != 36.08 || !p.InStock {
		t.Errorf("product = %+v", p)
	}
	if p.InstallDifficulty != "easy" {
		t.Errorf("install difficulty = %q, want easy", p.InstallDifficulty)
	}
}

func TestSendChatTurnServerError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent orchestrator not initialized", http.StatusInternalServerError)
	})

	_, err := client.SendChatTurn(context.Background(), "hi", nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("SendChatTurn() error = %v, want ErrUnavailable", err)
	}
}

func TestSendChatTurnMalformedBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><html>`)
	})

	_, err := client.SendChatTurn(context.Background(), "hi", nil)
	if !errors.Is(err, ErrBadPayload) {
		t.Fatalf("SendChatTurn() error = %v, want ErrBadPayload", err)
	}
}

func TestSendChatTurnUnreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client, err := NewClient(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	server.Close()

	if _, err := client.SendChatTurn(context.Background(), "hi", nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("SendChatTurn() error = %v, want ErrUnavailable", err)
	}
}

func TestAddCartItemWireShape(t *testing.T) {
	t.Parallel()

	var gotReq transactionRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cart" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"success": true, "message": "added"}`)
	})

	if err := client.AddCartItem(context.Background(), "PS11752778", 2); err != nil {
		t.Fatalf("AddCartItem() error = %v", err)
	}
	if gotReq.Action != "add_to_cart" || gotReq.PartNumber != "PS11752778" || gotReq.Quantity != 2 {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestAddCartItemRejected(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": false, "message": "part not found"}`)
	})

	err := client.AddCartItem(context.Background(), "PS0", 1)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("AddCartItem() error = %v, want ErrUnavailable", err)
	}
}

func TestClearCartWireShape(t *testing.T) {
	t.Parallel()

	var gotReq transactionRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"success": true}`)
	})

	if err := client.ClearCart(context.Background()); err != nil {
		t.Fatalf("ClearCart() error = %v", err)
	}
	if gotReq.Action != "clear_cart" || gotReq.PartNumber != "" || gotReq.Quantity != 0 {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestFetchCartMapsLines(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		fmt.Fprint(w, `{"cart": {"items": [
			{"part": {"partselect_number": "PS1", "name": "Bin", "price": 36.08, "in_stock": true}, "quantity": 3}
		]}}`)
	})

	cart, err := client.FetchCart(context.Background())
	if err != nil {
		t.Fatalf("FetchCart() error = %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 3 || cart.Lines[0].Product.PartNumber != "PS1" {
		t.Errorf("cart = %+v", cart)
	}
}

func TestGetPartPathEscapes(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parts/PS11752778" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"partselect_number": "PS11752778", "name": "Bin", "price": 36.08, "in_stock": true}`)
	})

	p, err := client.GetPart(context.Background(), "PS11752778")
	if err != nil {
		t.Fatalf("GetPart() error = %v", err)
	}
	if p.PartNumber != "PS11752778" {
		t.Errorf("part = %+v", p)
	}
}

func TestSearchPartsQuery(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parts/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "ice maker" || q.Get("limit") != "5" {
			t.Errorf("query = %v", q)
		}
		fmt.Fprint(w, `{"results": [{"part": {"partselect_number": "PS2", "name": "Ice Maker", "price": 101.5, "in_stock": false}}]}`)
	})

	products, err := client.SearchParts(context.Background(), "ice maker", 5)
	if err != nil {
		t.Fatalf("SearchParts() error = %v", err)
	}
	if len(products) != 1 || products[0].PartNumber != "PS2" || products[0].InStock {
		t.Errorf("products = %+v", products)
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("empty base url accepted")
	}
	if _, err := NewClient(Config{BaseURL: "://bad"}); err == nil {
		t.Fatal("invalid base url accepted")
	}
}
