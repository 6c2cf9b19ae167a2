// Package meta implements the metadata block layer (§3, §6.1): the
// block header shared by every block type, and parsers for the three
// block types the core understands natively (STREAMINFO, SEEKTABLE,
// PADDING). Every other block type is preserved as an opaque Raw
// block: its body is read unparsed, copied through verbatim on
// transcode and handed to the metadata callback as raw bytes on
// decode, matching §1's scope boundary.
package meta

import (
	"github.com/pkg/errors"

	"github.com/losslessaudio/flac/internal/bits"
)

// BlockType tags the kind of metadata block a header introduces.
type BlockType uint8

const (
	TypeStreamInfo    BlockType = 0
	TypePadding       BlockType = 1
	TypeApplication   BlockType = 2
	TypeSeekTable     BlockType = 3
	TypeVorbisComment BlockType = 4
	TypeCueSheet      BlockType = 5
	TypePicture       BlockType = 6
)

// BlockHeader is the 32-bit header preceding every metadata block
// body (§6.1).
type BlockHeader struct {
	IsLast bool
	Type   BlockType
	Length uint32 // body length in bytes, 24 bits on the wire.
}

// WriteBlockHeader serializes h.
func WriteBlockHeader(w *bits.Writer, h BlockHeader) error {
	if err := w.WriteBool(h.IsLast); err != nil {
		return err
	}
	if err := w.WriteUint(uint64(h.Type), 7); err != nil {
		return err
	}
	return w.WriteUint(uint64(h.Length), 24)
}

// ReadBlockHeader parses a block header.
func ReadBlockHeader(r *bits.Reader) (BlockHeader, error) {
	isLast, err := r.ReadBool()
	if err != nil {
		return BlockHeader{}, err
	}
	typeU, err := r.ReadUint(7)
	if err != nil {
		return BlockHeader{}, err
	}
	length, err := r.ReadUint(24)
	if err != nil {
		return BlockHeader{}, err
	}
	return BlockHeader{IsLast: isLast, Type: BlockType(typeU), Length: uint32(length)}, nil
}

// Block is a decoded metadata block: exactly one of StreamInfo,
// SeekTable, Padding, or Raw is non-nil, matching Header.Type.
type Block struct {
	Header     BlockHeader
	StreamInfo *StreamInfo
	SeekTable  *SeekTable
	Padding    *Padding
	// Raw carries the untouched body bytes of any block type the core
	// does not parse (APPLICATION, VORBIS_COMMENT, CUESHEET, PICTURE,
	// and any future/unknown type).
	Raw []byte
}

// ErrUnexpectedBlockOrder is returned when the first metadata block is
// not STREAMINFO (§3 invariant).
var ErrUnexpectedBlockOrder = errors.New("meta: STREAMINFO must be the first metadata block")

// ReadBlock parses one metadata block, given whether it is the first
// block in the stream (which must be STREAMINFO).
func ReadBlock(r *bits.Reader, first bool) (*Block, error) {
	h, err := ReadBlockHeader(r)
	if err != nil {
		return nil, err
	}
	if first && h.Type != TypeStreamInfo {
		return nil, ErrUnexpectedBlockOrder
	}

	blk := &Block{Header: h}
	switch h.Type {
	case TypeStreamInfo:
		si, err := readStreamInfo(r)
		if err != nil {
			return nil, err
		}
		blk.StreamInfo = si
	case TypeSeekTable:
		st, err := readSeekTable(r, h.Length)
		if err != nil {
			return nil, err
		}
		blk.SeekTable = st
	case TypePadding:
		if _, err := r.Align(); err != nil {
			return nil, err
		}
		if err := skipBytes(r, h.Length); err != nil {
			return nil, err
		}
		blk.Padding = &Padding{Length: h.Length}
	default:
		raw := make([]byte, h.Length)
		for i := range raw {
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			raw[i] = b
		}
		blk.Raw = raw
	}
	return blk, nil
}

// WriteBlock serializes blk, dispatching on which payload field is
// set.
func WriteBlock(w *bits.Writer, blk *Block) error {
	if err := WriteBlockHeader(w, blk.Header); err != nil {
		return err
	}
	switch {
	case blk.StreamInfo != nil:
		return writeStreamInfo(w, blk.StreamInfo)
	case blk.SeekTable != nil:
		return writeSeekTable(w, blk.SeekTable)
	case blk.Padding != nil:
		return w.WriteZeroes(int(blk.Padding.Length) * 8)
	default:
		_, err := w.Write(blk.Raw)
		return err
	}
}

func skipBytes(r *bits.Reader, n uint32) error {
	for i := uint32(0); i < n; i++ {
		if _, err := r.ReadByte(); err != nil {
			return err
		}
	}
	return nil
}

// Padding is a block of n zero bytes reserving space for future
// metadata growth (§3); its content carries no information.
type Padding struct {
	Length uint32
}
