package ident

import "testing"

func TestMarketIsDeterministic(t *testing.T) {
	a := Market("will-it-rain-2026-08-03")
	b := Market("will-it-rain-2026-08-03")
	if a != b {
		t.Fatalf("derived ids differ: %s vs %s", a, b)
	}
}

func TestMarketDistinctForDistinctExternalID(t *testing.T) {
	a := Market("poll-a")
	b := Market("poll-b")
	if a == b {
		t.Fatalf("distinct external ids collided: %s", a)
	}
}

func TestEscrowIsFunctionOfMarket(t *testing.T) {
	m := Market("poll-a")
	e1 := Escrow(m)
	e2 := Escrow(m)
	if e1 != e2 {
		t.Fatalf("escrow id not stable: %s vs %s", e1, e2)
	}
	if e1 == ID(m) {
		t.Fatalf("escrow id collided with market id")
	}
}

func TestTicketVariesByIndex(t *testing.T) {
	m := Market("poll-a")
	t1 := Ticket(m, "alice", 0)
	t2 := Ticket(m, "alice", 1)
	if t1 == t2 {
		t.Fatalf("distinct client ticket indices collided")
	}
}

func TestTicketRetryIsIdempotent(t *testing.T) {
	m := Market("poll-a")
	a := Ticket(m, "alice", 7)
	b := Ticket(m, "alice", 7)
	if a != b {
		t.Fatalf("retrying the same client ticket index produced a new id")
	}
}

func TestTicketVariesByPrincipal(t *testing.T) {
	m := Market("poll-a")
	a := Ticket(m, "alice", 0)
	b := Ticket(m, "bob", 0)
	if a == b {
		t.Fatalf("distinct principals collided for the same index")
	}
}

func TestValidPrincipal(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"evm address", "0x71C7656EC7ab88b098defB751B7401B5f6d8976F", true},
		{"evm address lowercase", "0x71c7656ec7ab88b098defb751b7401b5f6d8976f", true},
		{"opaque 32-byte id", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", true},
		{"opaque id wrong length", "0123456789abcdef", false},
		{"opaque id non-hex", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", false},
		{"empty", "", false},
		{"plain word", "alice", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidPrincipal(tc.in); got != tc.want {
				t.Errorf("ValidPrincipal(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
