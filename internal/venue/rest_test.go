package venue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"trading_go/internal/domain"
	"trading_go/pkg/quant"
)

func TestRESTClient_SubmitAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Access-Key") != "k" {
			t.Error("missing access key header")
		}

		var wo wireOrder
		if err := json.NewDecoder(r.Body).Decode(&wo); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if wo.ClientOrderID == "" || wo.Symbol != "AAPL" {
			t.Errorf("order payload incomplete: %+v", wo)
		}

		json.NewEncoder(w).Encode(wireAck{OrderID: "v-1", Status: "ACCEPTED"})
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "k", "s", true)
	order := domain.NewOrder("AAPL", domain.SideBuy, domain.TypeMarket, quant.ToQtyMilli(10), "s1")

	ack, err := c.Submit(context.Background(), SubmitRequest{Order: *order, ClientOrderID: order.ID})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if ack.VenueOrderID != "v-1" || ack.Status != domain.StatusAccepted {
		t.Errorf("unexpected ack: %+v", ack)
	}
}

func TestRESTClient_ErrorMapping(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusNotFound, ErrOrderNotFound},
		{http.StatusPaymentRequired, ErrInsufficientFunds},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusBadRequest, ErrValidation},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
		}))

		c := NewRESTClient(server.URL, "k", "s", false)
		_, err := c.Status(context.Background(), "x")
		if !errors.Is(err, tc.want) {
			t.Errorf("http %d: expected %v, got %v", tc.code, tc.want, err)
		}
		server.Close()
	}
}

func TestRESTClient_StatusParsesFills(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/abc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"order_id":   "v-7",
			"status":     "PARTIALLY_FILLED",
			"filled_qty": "5.000",
			"avg_price":  "100.50",
			"fills": []map[string]interface{}{
				{"exec_id": "x-1", "qty": "5.000", "price": "100.50", "commission": "0.50", "ts": int64(1704067200000)},
			},
		})
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "k", "s", false)
	st, err := c.Status(context.Background(), "abc")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if st.Status != domain.StatusPartiallyFilled {
		t.Errorf("expected PARTIALLY_FILLED, got %s", st.Status)
	}
	if st.FilledQtyMilli != quant.ToQtyMilli(5) {
		t.Errorf("expected 5 filled, got %s", st.FilledQtyMilli)
	}
	if len(st.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(st.Fills))
	}
	f := st.Fills[0]
	if f.ExecID != "x-1" || f.PriceMicros != quant.ToPriceMicros(100.50) {
		t.Errorf("fill mismatch: %+v", f)
	}
	if f.CommissionMicros != 500_000 {
		t.Errorf("expected commission 0.50, got %d", f.CommissionMicros)
	}
	if f.OrderID != "abc" {
		t.Errorf("fill must carry the client order id, got %q", f.OrderID)
	}
}

func TestRESTClient_CancelHitsDeleteEndpoint(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "k", "s", false)
	if err := c.Cancel(context.Background(), "abc", "AAPL"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/orders/abc" {
		t.Errorf("unexpected request: %s %s", gotMethod, gotPath)
	}
}
