package p2p

import (
	"google.golang.org/protobuf/encoding/protowire"

	"champ/core"
)

// voteMessage field numbers. Both proposal and final-vote frames share this
// shape: a RawBlock payload plus the sender's voting weight.
const (
	fieldVoteBlock = protowire.Number(1)
	fieldVoteValue = protowire.Number(2)
)

func encodeVoteMessage(block *core.Block, vote uint64) ([]byte, error) {
	blockBytes, err := core.EncodeBlock(block)
	if err != nil {
		return nil, err
	}
	var b []byte
	b = protowire.AppendTag(b, fieldVoteBlock, protowire.BytesType)
	b = protowire.AppendBytes(b, blockBytes)
	b = protowire.AppendTag(b, fieldVoteValue, protowire.VarintType)
	b = protowire.AppendVarint(b, vote)
	return b, nil
}

func decodeVoteMessage(buf []byte) (*core.Block, uint64, error) {
	var block core.Block
	var vote uint64
	haveBlock := false
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, 0, core.Wrap(core.ErrDecode, "vote message tag")
		}
		buf = buf[n:]
		switch num {
		case fieldVoteBlock:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, 0, core.Wrap(core.ErrDecode, "vote message block")
			}
			decoded, err := core.DecodeBlock(v)
			if err != nil {
				return nil, 0, err
			}
			block = decoded
			haveBlock = true
			buf = buf[n:]
		case fieldVoteValue:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, 0, core.Wrap(core.ErrDecode, "vote message value")
			}
			vote = v
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return nil, 0, core.Wrap(core.ErrDecode, "vote message unknown field")
			}
			buf = buf[n:]
		}
	}
	if !haveBlock {
		return nil, 0, core.Wrap(core.ErrDataMissing, "vote message missing block")
	}
	return &block, vote, nil
}
