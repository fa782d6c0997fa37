package domain

import "testing"

func TestOrderIsBuy(t *testing.T) {
	buy := &Order{Side: SideBuy}
	sell := &Order{Side: SideSell}

	if !buy.IsBuy() {
		t.Fatal("a buy-side order should report IsBuy() == true")
	}
	if sell.IsBuy() {
		t.Fatal("a sell-side order should report IsBuy() == false")
	}
}
