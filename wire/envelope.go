package wire

import (
	"encoding/binary"

	"github.com/meshdice/consensus/types"
)

// MsgType identifies the payload carried by an Envelope (spec §6.2).
type MsgType uint8

const (
	MsgProposal   MsgType = 0x10
	MsgVote       MsgType = 0x11
	MsgCommit     MsgType = 0x12
	MsgReveal     MsgType = 0x13
	MsgDispute    MsgType = 0x14
	MsgDisputeVote MsgType = 0x15
	MsgStateSync  MsgType = 0x16
	MsgDelta      MsgType = 0x17
	MsgFullState  MsgType = 0x18
)

func (m MsgType) Known() bool {
	switch m {
	case MsgProposal, MsgVote, MsgCommit, MsgReveal, MsgDispute, MsgDisputeVote, MsgStateSync, MsgDelta, MsgFullState:
		return true
	default:
		return false
	}
}

// Version is the [major,minor,patch] triple carried in every envelope.
type Version struct {
	Major, Minor, Patch uint8
}

// Envelope is the fixed-header wire frame every message is wrapped in:
//
//	[3B version][1B msg_type][1B flags][4B payload_len BE][payload...]
type Envelope struct {
	Version Version
	MsgType MsgType
	Flags   uint8
	Payload []byte
}

// Encode serializes the envelope.
func (e Envelope) Encode() []byte {
	buf := make([]byte, 0, 9+len(e.Payload))
	buf = append(buf, e.Version.Major, e.Version.Minor, e.Version.Patch)
	buf = append(buf, byte(e.MsgType), e.Flags)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e.Payload)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, e.Payload...)
	return buf
}

// LocalVersion is this build's protocol version, used to reject
// incompatible major versions on decode.
var LocalVersion = Version{Major: 1, Minor: 4, Patch: 0}

// DecodeEnvelope parses buf, accepting only frames whose major version
// matches LocalVersion.Major and whose declared payload_len matches the
// remaining bytes exactly.
func DecodeEnvelope(buf []byte) (Envelope, error) {
	if len(buf) < 9 {
		return Envelope{}, types.NewError(types.KindInvalidData, "envelope shorter than fixed header", nil)
	}
	e := Envelope{
		Version: Version{Major: buf[0], Minor: buf[1], Patch: buf[2]},
		MsgType: MsgType(buf[3]),
		Flags:   buf[4],
	}
	if e.Version.Major != LocalVersion.Major {
		return Envelope{}, types.ErrVersionIncompat
	}
	if !e.MsgType.Known() {
		return Envelope{}, types.ErrUnknownMsgType
	}
	payloadLen := binary.BigEndian.Uint32(buf[5:9])
	rest := buf[9:]
	if uint32(len(rest)) != payloadLen {
		return Envelope{}, types.NewError(types.KindInvalidData, "payload_len does not match remaining bytes", nil)
	}
	e.Payload = append([]byte(nil), rest...)
	return e, nil
}
