package reentrancy

import "testing"

func TestGateEnterLower(t *testing.T) {
	var g Gate
	if g.Raised() {
		t.Fatal("expected gate to start lowered")
	}
	leave := g.Enter()
	if !g.Raised() {
		t.Fatal("expected gate to be raised after Enter")
	}
	leave()
	if g.Raised() {
		t.Fatal("expected gate to be lowered after the returned func runs")
	}
}
