package domain

import "testing"

func TestAllowsSymbolEmptyAllowListMeansAll(t *testing.T) {
	c := &Contest{}
	if !c.AllowsSymbol("EURUSD") {
		t.Fatal("an empty AllowedSymbols list should allow any symbol")
	}
}

func TestAllowsSymbolBlockListTakesPrecedence(t *testing.T) {
	c := &Contest{AllowedSymbols: []string{"EURUSD"}, BlockedSymbols: []string{"EURUSD"}}
	if c.AllowsSymbol("EURUSD") {
		t.Fatal("a symbol on both the allow and block list must be blocked")
	}
}

func TestAllowsSymbolRespectsAllowList(t *testing.T) {
	c := &Contest{AllowedSymbols: []string{"EURUSD", "GBPUSD"}}
	if !c.AllowsSymbol("EURUSD") {
		t.Fatal("EURUSD is in the allow list and should be permitted")
	}
	if c.AllowsSymbol("USDJPY") {
		t.Fatal("USDJPY is not in the allow list and should be rejected")
	}
}

func TestIsFullAndMeetsMinimum(t *testing.T) {
	c := &Contest{MinParticipants: 2, MaxParticipants: 4, CurrentParticipants: 1}
	if c.IsFull() {
		t.Fatal("1/4 participants should not be full")
	}
	if c.MeetsMinimum() {
		t.Fatal("1 participant should not meet a minimum of 2")
	}

	c.CurrentParticipants = 4
	if !c.IsFull() {
		t.Fatal("4/4 participants should be full")
	}
	if !c.MeetsMinimum() {
		t.Fatal("4 participants should meet a minimum of 2")
	}
}
