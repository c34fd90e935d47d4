// Package wire implements the engine's binary instruction encoding: a
// single-byte discriminator followed by borsh-like length-prefixed fields.
// This is the format a thin client or test harness uses to submit
// instructions without going through the HTTP surface.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Tag identifies one of the six instructions.
type Tag byte

const (
	TagOpen         Tag = 0
	TagStake        Tag = 1
	TagSettle       Tag = 2
	TagClaimPayout  Tag = 3
	TagCancel       Tag = 4
	TagClaimRefund  Tag = 5
)

// ErrTruncated indicates the buffer ended before a length-prefixed field or
// fixed-width field could be fully read.
var ErrTruncated = errors.New("wire: truncated buffer")

// ErrUnknownTag indicates the leading discriminator byte does not match
// any known instruction.
var ErrUnknownTag = errors.New("wire: unknown instruction tag")

type encoder struct {
	buf []byte
}

func newEncoder(tag Tag) *encoder {
	return &encoder{buf: []byte{byte(tag)}}
}

func (e *encoder) string(s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	e.buf = append(e.buf, lenBuf[:]...)
	e.buf = append(e.buf, s...)
}

func (e *encoder) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) u8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) bytes() []byte {
	return e.buf
}

type decoder struct {
	buf []byte
	pos int
}

func newDecoder(buf []byte) *decoder {
	return &decoder{buf: buf}
}

func (d *decoder) string() (string, error) {
	if d.pos+4 > len(d.buf) {
		return "", ErrTruncated
	}
	n := binary.LittleEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	if d.pos+int(n) > len(d.buf) {
		return "", ErrTruncated
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

func (d *decoder) u64() (uint64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos : d.pos+8])
	d.pos += 8
	return v, nil
}

func (d *decoder) u8() (uint8, error) {
	if d.pos+1 > len(d.buf) {
		return 0, ErrTruncated
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

// OpenArgs are the fields of an Open instruction.
type OpenArgs struct {
	ExternalID string
	Title      string
	LabelA     string
	LabelB     string
	Authority  string
	EndsAtUnix uint64
}

// EncodeOpen serializes an Open instruction.
func EncodeOpen(a OpenArgs) []byte {
	e := newEncoder(TagOpen)
	e.string(a.ExternalID)
	e.string(a.Title)
	e.string(a.LabelA)
	e.string(a.LabelB)
	e.string(a.Authority)
	e.u64(a.EndsAtUnix)
	return e.bytes()
}

func decodeOpen(d *decoder) (OpenArgs, error) {
	var a OpenArgs
	var err error
	if a.ExternalID, err = d.string(); err != nil {
		return a, err
	}
	if a.Title, err = d.string(); err != nil {
		return a, err
	}
	if a.LabelA, err = d.string(); err != nil {
		return a, err
	}
	if a.LabelB, err = d.string(); err != nil {
		return a, err
	}
	if a.Authority, err = d.string(); err != nil {
		return a, err
	}
	if a.EndsAtUnix, err = d.u64(); err != nil {
		return a, err
	}
	return a, nil
}

// StakeArgs are the fields of a Stake instruction.
type StakeArgs struct {
	ExternalID        string
	Principal         string
	ClientTicketIndex uint64
	Outcome           uint8
	Amount            uint64
}

// EncodeStake serializes a Stake instruction.
func EncodeStake(a StakeArgs) []byte {
	e := newEncoder(TagStake)
	e.string(a.ExternalID)
	e.string(a.Principal)
	e.u64(a.ClientTicketIndex)
	e.u8(a.Outcome)
	e.u64(a.Amount)
	return e.bytes()
}

func decodeStake(d *decoder) (StakeArgs, error) {
	var a StakeArgs
	var err error
	if a.ExternalID, err = d.string(); err != nil {
		return a, err
	}
	if a.Principal, err = d.string(); err != nil {
		return a, err
	}
	if a.ClientTicketIndex, err = d.u64(); err != nil {
		return a, err
	}
	if a.Outcome, err = d.u8(); err != nil {
		return a, err
	}
	if a.Amount, err = d.u64(); err != nil {
		return a, err
	}
	return a, nil
}

// SettleArgs are the fields of a Settle instruction.
type SettleArgs struct {
	ExternalID     string
	Authority      string
	WinningOutcome uint8
}

// EncodeSettle serializes a Settle instruction.
func EncodeSettle(a SettleArgs) []byte {
	e := newEncoder(TagSettle)
	e.string(a.ExternalID)
	e.string(a.Authority)
	e.u8(a.WinningOutcome)
	return e.bytes()
}

func decodeSettle(d *decoder) (SettleArgs, error) {
	var a SettleArgs
	var err error
	if a.ExternalID, err = d.string(); err != nil {
		return a, err
	}
	if a.Authority, err = d.string(); err != nil {
		return a, err
	}
	if a.WinningOutcome, err = d.u8(); err != nil {
		return a, err
	}
	return a, nil
}

// CancelArgs are the fields of a Cancel instruction.
type CancelArgs struct {
	ExternalID string
	Authority  string
}

// EncodeCancel serializes a Cancel instruction.
func EncodeCancel(a CancelArgs) []byte {
	e := newEncoder(TagCancel)
	e.string(a.ExternalID)
	e.string(a.Authority)
	return e.bytes()
}

func decodeCancel(d *decoder) (CancelArgs, error) {
	var a CancelArgs
	var err error
	if a.ExternalID, err = d.string(); err != nil {
		return a, err
	}
	if a.Authority, err = d.string(); err != nil {
		return a, err
	}
	return a, nil
}

// ClaimPayoutArgs are the fields of a ClaimPayout instruction. Treasury is
// the principal credited with the platform fee cut out of the payout.
type ClaimPayoutArgs struct {
	ExternalID string
	Principal  string
	TicketID   string
	Treasury   string
}

// EncodeClaimPayout serializes a ClaimPayout instruction.
func EncodeClaimPayout(a ClaimPayoutArgs) []byte {
	e := newEncoder(TagClaimPayout)
	e.string(a.ExternalID)
	e.string(a.Principal)
	e.string(a.TicketID)
	e.string(a.Treasury)
	return e.bytes()
}

func decodeClaimPayout(d *decoder) (ClaimPayoutArgs, error) {
	var a ClaimPayoutArgs
	var err error
	if a.ExternalID, err = d.string(); err != nil {
		return a, err
	}
	if a.Principal, err = d.string(); err != nil {
		return a, err
	}
	if a.TicketID, err = d.string(); err != nil {
		return a, err
	}
	if a.Treasury, err = d.string(); err != nil {
		return a, err
	}
	return a, nil
}

// ClaimRefundArgs are the fields of a ClaimRefund instruction.
type ClaimRefundArgs struct {
	ExternalID string
	Principal  string
	TicketID   string
}

// EncodeClaimRefund serializes a ClaimRefund instruction.
func EncodeClaimRefund(a ClaimRefundArgs) []byte {
	e := newEncoder(TagClaimRefund)
	e.string(a.ExternalID)
	e.string(a.Principal)
	e.string(a.TicketID)
	return e.bytes()
}

func decodeClaimRefund(d *decoder) (ClaimRefundArgs, error) {
	var a ClaimRefundArgs
	var err error
	if a.ExternalID, err = d.string(); err != nil {
		return a, err
	}
	if a.Principal, err = d.string(); err != nil {
		return a, err
	}
	if a.TicketID, err = d.string(); err != nil {
		return a, err
	}
	return a, nil
}

// Instruction is a decoded instruction: exactly one of its Args fields is
// populated, selected by Tag.
type Instruction struct {
	Tag          Tag
	Open         *OpenArgs
	Stake        *StakeArgs
	Settle       *SettleArgs
	Cancel       *CancelArgs
	ClaimPayout  *ClaimPayoutArgs
	ClaimRefund  *ClaimRefundArgs
}

// Decode reads the discriminator byte and dispatches to the matching
// field decoder.
func Decode(buf []byte) (Instruction, error) {
	if len(buf) < 1 {
		return Instruction{}, ErrTruncated
	}
	tag := Tag(buf[0])
	d := newDecoder(buf[1:])

	switch tag {
	case TagOpen:
		a, err := decodeOpen(d)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Tag: tag, Open: &a}, nil
	case TagStake:
		a, err := decodeStake(d)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Tag: tag, Stake: &a}, nil
	case TagSettle:
		a, err := decodeSettle(d)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Tag: tag, Settle: &a}, nil
	case TagCancel:
		a, err := decodeCancel(d)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Tag: tag, Cancel: &a}, nil
	case TagClaimPayout:
		a, err := decodeClaimPayout(d)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Tag: tag, ClaimPayout: &a}, nil
	case TagClaimRefund:
		a, err := decodeClaimRefund(d)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Tag: tag, ClaimRefund: &a}, nil
	default:
		return Instruction{}, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
}
