package wire

import "testing"

func TestOpenRoundTrip(t *testing.T) {
	want := OpenArgs{
		ExternalID: "poll-1",
		Title:      "Will it rain",
		LabelA:     "Yes",
		LabelB:     "No",
		Authority:  "alice",
		EndsAtUnix: 1_800_000_000,
	}
	buf := EncodeOpen(want)
	ins, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ins.Tag != TagOpen || ins.Open == nil {
		t.Fatalf("decoded wrong shape: %+v", ins)
	}
	if *ins.Open != want {
		t.Fatalf("got %+v, want %+v", *ins.Open, want)
	}
}

func TestStakeRoundTrip(t *testing.T) {
	want := StakeArgs{
		ExternalID:        "poll-1",
		Principal:         "bob",
		ClientTicketIndex: 42,
		Outcome:           1,
		Amount:            10_000_000,
	}
	buf := EncodeStake(want)
	ins, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ins.Stake == nil || *ins.Stake != want {
		t.Fatalf("got %+v, want %+v", ins.Stake, want)
	}
}

func TestClaimPayoutRoundTrip(t *testing.T) {
	want := ClaimPayoutArgs{ExternalID: "poll-1", Principal: "bob", TicketID: "deadbeef", Treasury: "treasury"}
	buf := EncodeClaimPayout(want)
	ins, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ins.ClaimPayout == nil || *ins.ClaimPayout != want {
		t.Fatalf("got %+v, want %+v", ins.ClaimPayout, want)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte{99})
	if err == nil {
		t.Fatalf("expected an error for an unknown tag")
	}
}

func TestDecodeTruncatedBuffer(t *testing.T) {
	buf := EncodeOpen(OpenArgs{ExternalID: "poll-1", Title: "t", LabelA: "a", LabelB: "b", Authority: "x", EndsAtUnix: 1})
	_, err := Decode(buf[:len(buf)-2])
	if err == nil {
		t.Fatalf("expected truncation error")
	}
}

func TestDecodeEmptyBuffer(t *testing.T) {
	_, err := Decode(nil)
	if err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}
