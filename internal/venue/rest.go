package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"trading_go/internal/domain"
	"trading_go/pkg/quant"
)

// RESTClient implements Client over the broker's HTTP order API. Broker
// failures are mapped onto the package sentinels so the execution layer can
// classify them without knowing HTTP.
type RESTClient struct {
	baseURL    string
	accessKey  string
	secretKey  string
	idempotent bool
	http       *http.Client
}

// NewRESTClient creates a broker client. idempotent reports whether the
// broker dedups submissions on the client order ID.
func NewRESTClient(baseURL, accessKey, secretKey string, idempotent bool) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		accessKey:  accessKey,
		secretKey:  secretKey,
		idempotent: idempotent,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

// SupportsClientOrderID reports broker-side submit idempotency.
func (c *RESTClient) SupportsClientOrderID() bool { return c.idempotent }

type wireOrder struct {
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Qty           string `json:"qty"`
	LimitPrice    string `json:"limit_price,omitempty"`
	StopPrice     string `json:"stop_price,omitempty"`
	TIF           string `json:"tif"`
}

type wireAck struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
}

type wireStatus struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	FilledQty string `json:"filled_qty"`
	AvgPrice  string `json:"avg_price"`
	Fills     []struct {
		ExecID     string `json:"exec_id"`
		Qty        string `json:"qty"`
		Price      string `json:"price"`
		Commission string `json:"commission"`
		TsMs       int64  `json:"ts"`
	} `json:"fills"`
}

// Submit places an order.
func (c *RESTClient) Submit(ctx context.Context, req SubmitRequest) (Ack, error) {
	o := req.Order
	body := wireOrder{
		ClientOrderID: req.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          string(o.Side),
		Type:          string(o.Type),
		Qty:           o.QtyMilli.String(),
		TIF:           string(o.TIF),
	}
	if o.LimitPriceMicros > 0 {
		body.LimitPrice = o.LimitPriceMicros.String()
	}
	if o.StopPriceMicros > 0 {
		body.StopPrice = o.StopPriceMicros.String()
	}

	var ack wireAck
	if err := c.do(ctx, http.MethodPost, "/orders", body, &ack); err != nil {
		return Ack{}, err
	}

	status := domain.StatusAccepted
	if ack.Status == "REJECTED" {
		status = domain.StatusRejected
	}
	return Ack{VenueOrderID: ack.OrderID, Status: status, Reason: ack.Reason}, nil
}

// Cancel requests cancellation by client order ID.
func (c *RESTClient) Cancel(ctx context.Context, clientOrderID, symbol string) error {
	path := fmt.Sprintf("/orders/%s?symbol=%s", url.PathEscape(clientOrderID), url.QueryEscape(symbol))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Status looks up the venue-side state by client order ID.
func (c *RESTClient) Status(ctx context.Context, clientOrderID string) (OrderStatus, error) {
	var ws wireStatus
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(clientOrderID), nil, &ws); err != nil {
		return OrderStatus{}, err
	}

	st := OrderStatus{
		VenueOrderID:   ws.OrderID,
		Status:         domain.Status(ws.Status),
		FilledQtyMilli: quant.ToQtyMilliStr(ws.FilledQty),
		AvgPriceMicros: quant.ToPriceMicrosStr(ws.AvgPrice),
	}
	for _, wf := range ws.Fills {
		st.Fills = append(st.Fills, domain.Fill{
			ExecID:           wf.ExecID,
			OrderID:          clientOrderID,
			Symbol:           "", // filled in by the caller's order context
			QtyMilli:         quant.ToQtyMilliStr(wf.Qty),
			PriceMicros:      quant.ToPriceMicrosStr(wf.Price),
			CommissionMicros: int64(quant.ToPriceMicrosStr(wf.Commission)),
			TsUnixMicros:     wf.TsMs * 1000,
		})
	}
	return st, nil
}

// do runs one HTTP round trip and maps the response onto the error taxonomy.
func (c *RESTClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Key", c.accessKey)
	req.Header.Set("X-Secret-Key", c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		// A transport failure mid-write leaves the outcome unknown.
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrAmbiguous, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrAuth
	case resp.StatusCode == http.StatusNotFound:
		return ErrOrderNotFound
	case resp.StatusCode == http.StatusPaymentRequired:
		return ErrInsufficientFunds
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: http %d", ErrValidation, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: malformed response: %v", ErrConnection, err)
		}
	}
	return nil
}
