package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"trading_go/internal/domain"
	"trading_go/internal/venue"
	"trading_go/pkg/quant"
)

// QuoteSource supplies the latest quote for a symbol. Implemented by the
// market-data quote book.
type QuoteSource interface {
	Quote(symbol string) (domain.Quote, bool)
}

// paperOrder is the engine-side record of a submitted order. Resting limit
// and stop orders stay here until a quote triggers them.
type paperOrder struct {
	id          string
	symbol      string
	side        domain.Side
	typ         domain.OrderType
	qtyMilli    quant.QtyMilli
	limitMicros quant.PriceMicros
	stopMicros  quant.PriceMicros

	filledMilli quant.QtyMilli
	avgMicros   quant.PriceMicros
	status      domain.Status
}

// PaperEngine simulates executions against live quotes with configurable
// slippage and commission. Market orders fill in full at the current quote;
// limit and stop orders rest until a quote crosses them.
type PaperEngine struct {
	mu     sync.Mutex
	quotes QuoteSource
	onFill FillFunc
	log    *slog.Logger

	commissionRate float64
	slippageBps    int64

	orders map[string]*paperOrder
}

// NewPaperEngine creates a paper engine. commissionRate is a fraction of
// notional per fill (e.g. 0.001); slippageBps worsens market-order prices by
// basis points of the quote.
func NewPaperEngine(quotes QuoteSource, commissionRate float64, slippageBps int64, onFill FillFunc, log *slog.Logger) *PaperEngine {
	return &PaperEngine{
		quotes:         quotes,
		onFill:         onFill,
		log:            log,
		commissionRate: commissionRate,
		slippageBps:    slippageBps,
		orders:         make(map[string]*paperOrder),
	}
}

// Submit accepts the order and, for market orders or already-crossed limit
// orders, fills it in full immediately. A missing quote rejects the order.
func (e *PaperEngine) Submit(ctx context.Context, order *domain.Order) error {
	if err := order.TransitionTo(domain.StatusSubmitted, "paper submit"); err != nil {
		return err
	}

	q, ok := e.quotes.Quote(order.Symbol)
	if !ok || q.LastMicros <= 0 {
		_ = order.TransitionTo(domain.StatusRejected, "no quote for symbol")
		return fmt.Errorf("paper submit %s: %w: no quote for %s", order.ID, venue.ErrValidation, order.Symbol)
	}

	order.VenueOrderID = "paper-" + order.ID
	if err := order.TransitionTo(domain.StatusAccepted, "paper accept"); err != nil {
		return err
	}

	po := &paperOrder{
		id:          order.ID,
		symbol:      order.Symbol,
		side:        order.Side,
		typ:         order.Type,
		qtyMilli:    order.QtyMilli,
		limitMicros: order.LimitPriceMicros,
		stopMicros:  order.StopPriceMicros,
		status:      domain.StatusAccepted,
	}

	e.mu.Lock()
	e.orders[order.ID] = po
	fill, ok := e.tryExecute(po, q)
	e.mu.Unlock()

	if ok {
		e.onFill(fill)
	}
	return nil
}

// Cancel removes a resting order. Orders already filled cannot be cancelled.
func (e *PaperEngine) Cancel(ctx context.Context, order *domain.Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	po, ok := e.orders[order.ID]
	if !ok {
		return fmt.Errorf("paper cancel %s: %w", order.ID, venue.ErrOrderNotFound)
	}
	if po.status == domain.StatusFilled {
		return fmt.Errorf("paper cancel %s: %w: already filled", order.ID, venue.ErrValidation)
	}
	po.status = domain.StatusCancelled
	delete(e.orders, order.ID)
	return nil
}

// Status reports the engine-side view of an order.
func (e *PaperEngine) Status(ctx context.Context, order *domain.Order) (venue.OrderStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	po, ok := e.orders[order.ID]
	if !ok {
		return venue.OrderStatus{}, fmt.Errorf("paper status %s: %w", order.ID, venue.ErrOrderNotFound)
	}
	return venue.OrderStatus{
		VenueOrderID:   "paper-" + po.id,
		Status:         po.status,
		FilledQtyMilli: po.filledMilli,
		AvgPriceMicros: po.avgMicros,
	}, nil
}

// OnQuote re-evaluates resting orders against a fresh quote. Triggered fills
// are dispatched outside the engine lock.
func (e *PaperEngine) OnQuote(q domain.Quote) {
	var fills []domain.Fill

	e.mu.Lock()
	for _, po := range e.orders {
		if po.symbol != q.Symbol || po.status == domain.StatusFilled {
			continue
		}
		if fill, ok := e.tryExecute(po, q); ok {
			fills = append(fills, fill)
		}
	}
	e.mu.Unlock()

	for _, f := range fills {
		e.onFill(f)
	}
}

// tryExecute fills po in full if the quote satisfies it. Must hold mu.
func (e *PaperEngine) tryExecute(po *paperOrder, q domain.Quote) (domain.Fill, bool) {
	last := q.LastMicros

	var price quant.PriceMicros
	switch po.typ {
	case domain.TypeMarket:
		price = e.slip(last, po.side)
	case domain.TypeLimit:
		// A buy fills once the market trades at or below the limit, a sell
		// at or above. Fills at the limit price, never worse.
		if po.side == domain.SideBuy && last <= po.limitMicros {
			price = po.limitMicros
		} else if po.side == domain.SideSell && last >= po.limitMicros {
			price = po.limitMicros
		} else {
			return domain.Fill{}, false
		}
	case domain.TypeStop:
		// A sell stop triggers when the market falls to the stop, a buy stop
		// when it rises to it; both then execute like a market order.
		triggered := (po.side == domain.SideSell && last <= po.stopMicros) ||
			(po.side == domain.SideBuy && last >= po.stopMicros)
		if !triggered {
			return domain.Fill{}, false
		}
		price = e.slip(last, po.side)
	default:
		return domain.Fill{}, false
	}

	qty := po.qtyMilli - po.filledMilli
	po.filledMilli = po.qtyMilli
	po.avgMicros = price
	po.status = domain.StatusFilled

	notional := quant.Notional(price, qty)
	fill := domain.Fill{
		ExecID:           uuid.NewString(),
		OrderID:          po.id,
		Symbol:           po.symbol,
		Side:             po.side,
		QtyMilli:         qty,
		PriceMicros:      price,
		CommissionMicros: int64(float64(notional) * e.commissionRate),
		TsUnixMicros:     time.Now().UnixMicro(),
	}
	e.log.Debug("Paper fill",
		slog.String("order_id", po.id),
		slog.String("symbol", po.symbol),
		slog.String("side", string(po.side)),
		slog.String("price", price.String()),
		slog.String("qty", qty.String()))
	return fill, true
}

// slip worsens the price by slippageBps in the direction that hurts: buys pay
// up, sells receive less.
func (e *PaperEngine) slip(p quant.PriceMicros, side domain.Side) quant.PriceMicros {
	if e.slippageBps == 0 {
		return p
	}
	adj := quant.PriceMicros(quant.MulDiv(int64(p), e.slippageBps, 10_000))
	if side == domain.SideBuy {
		return p + adj
	}
	return p - adj
}
