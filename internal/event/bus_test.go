package event

import (
	"testing"

	"trading_go/internal/domain"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(8)

	b.Publish(&OrderUpdateEvent{OrderID: "o1", Symbol: "AAPL", Status: domain.StatusFilled})
	b.Publish(&RiskRejectedEvent{Reason: "MaxNotional"})

	ev1 := <-sub
	if ev1.GetType() != EvOrderUpdate {
		t.Errorf("expected order update, got %d", ev1.GetType())
	}
	if ev1.GetSeq() != 1 {
		t.Errorf("expected seq 1, got %d", ev1.GetSeq())
	}
	if ev1.GetTs() == 0 {
		t.Error("expected publish timestamp")
	}

	ev2 := <-sub
	if ev2.GetType() != EvRiskRejected {
		t.Errorf("expected risk rejection, got %d", ev2.GetType())
	}
	if ev2.GetSeq() != 2 {
		t.Errorf("expected seq 2, got %d", ev2.GetSeq())
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus()
	b.Subscribe(1) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(&AlertEvent{Message: "x"})
		}
		close(done)
	}()

	<-done // must complete despite the full subscriber buffer
}

func TestBus_DurableSubscriberLosesNothing(t *testing.T) {
	b := NewBus()
	sub := b.SubscribeDurable(1) // tiny buffer forces backpressure

	var got int
	done := make(chan struct{})
	go func() {
		for range sub {
			got++
		}
		close(done)
	}()

	for i := 0; i < 100; i++ {
		b.Publish(&FillEvent{})
	}
	b.Close()
	<-done

	if got != 100 {
		t.Errorf("durable subscriber must see every event, got %d of 100", got)
	}
}

func TestBus_Close(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(1)
	b.Close()

	if _, open := <-sub; open {
		t.Error("expected closed subscriber channel")
	}
}
