package meta

import (
	"bytes"
	"testing"

	"github.com/losslessaudio/flac/internal/bits"
)

func TestStreamInfoRoundTrip(t *testing.T) {
	si := &StreamInfo{
		MinBlockSize: 4096, MaxBlockSize: 4096,
		MinFrameSize: 100, MaxFrameSize: 9000,
		SampleRate: 44100, Channels: 2, BitsPerSample: 16,
		TotalSamples: 123456789,
	}
	copy(si.MD5[:], []byte("0123456789abcdef"))

	if err := si.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	buf := &bytes.Buffer{}
	w := bits.NewWriter(buf)
	if err := writeStreamInfo(w, si); err != nil {
		t.Fatalf("writeStreamInfo: %v", err)
	}
	if err := w.ZeroPadToByte(); err != nil {
		t.Fatal(err)
	}

	r := bits.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := readStreamInfo(r)
	if err != nil {
		t.Fatalf("readStreamInfo: %v", err)
	}
	if *got != *si {
		t.Errorf("round-trip mismatch: got %+v, want %+v", got, si)
	}
}

func TestStreamInfoValidateRejectsOutOfRange(t *testing.T) {
	cases := []*StreamInfo{
		{SampleRate: 0, Channels: 1, BitsPerSample: 16, MaxBlockSize: 10},
		{SampleRate: 44100, Channels: 9, BitsPerSample: 16, MaxBlockSize: 10},
		{SampleRate: 44100, Channels: 2, BitsPerSample: 3, MaxBlockSize: 10},
		{SampleRate: 44100, Channels: 2, BitsPerSample: 16, MinBlockSize: 20, MaxBlockSize: 10},
	}
	for i, si := range cases {
		if err := si.Validate(); err == nil {
			t.Errorf("case %d: expected validation error, got nil", i)
		}
	}
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	h := BlockHeader{IsLast: true, Type: TypeSeekTable, Length: 1234}
	buf := &bytes.Buffer{}
	w := bits.NewWriter(buf)
	if err := WriteBlockHeader(w, h); err != nil {
		t.Fatalf("WriteBlockHeader: %v", err)
	}
	r := bits.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := ReadBlockHeader(r)
	if err != nil {
		t.Fatalf("ReadBlockHeader: %v", err)
	}
	if got != h {
		t.Errorf("round-trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestSeekTableFillAndBracket(t *testing.T) {
	st := NewTemplate(100000, 10000)
	if len(st.Points) != 10 {
		t.Fatalf("template has %d points, want 10", len(st.Points))
	}

	var offset uint64
	for frame := 0; frame < 30; frame++ {
		first := uint64(frame) * 4096
		if filled := st.FillEarliestUnfilled(first, 4096, offset); filled {
			_ = filled
		}
		offset += 5000
	}

	st.Sort()
	lower, upper, ok := st.Bracket(45000)
	if !ok {
		t.Fatal("Bracket: no usable points")
	}
	if lower.SampleNumber > 45000 || upper.SampleNumber < 45000 {
		if upper != lower {
			t.Errorf("bracket [%d,%d] does not contain 45000", lower.SampleNumber, upper.SampleNumber)
		}
	}
}

func TestSeekTablePlaceholderSortsLast(t *testing.T) {
	st := &SeekTable{Points: []SeekPoint{
		{SampleNumber: PlaceholderSampleNumber},
		{SampleNumber: 100},
		{SampleNumber: 50},
	}}
	st.Sort()
	if st.Points[0].SampleNumber != 50 || st.Points[1].SampleNumber != 100 {
		t.Fatalf("unexpected sort order: %+v", st.Points)
	}
	if !st.Points[2].IsPlaceholder() {
		t.Fatalf("placeholder did not sort last: %+v", st.Points)
	}
}

func TestRawBlockRoundTrip(t *testing.T) {
	blk := &Block{
		Header: BlockHeader{IsLast: false, Type: TypeVorbisComment, Length: 5},
		Raw:    []byte("hello"),
	}
	buf := &bytes.Buffer{}
	w := bits.NewWriter(buf)
	if err := WriteBlock(w, blk); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}

	r := bits.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := ReadBlock(r, false)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.Equal(got.Raw, blk.Raw) {
		t.Errorf("raw round-trip mismatch: got %q, want %q", got.Raw, blk.Raw)
	}
}

func TestReadBlockRejectsNonStreamInfoFirst(t *testing.T) {
	blk := &Block{Header: BlockHeader{IsLast: true, Type: TypePadding, Length: 4}, Padding: &Padding{Length: 4}}
	buf := &bytes.Buffer{}
	w := bits.NewWriter(buf)
	if err := WriteBlock(w, blk); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	r := bits.NewReader(bytes.NewReader(buf.Bytes()))
	_, err := ReadBlock(r, true)
	if err != ErrUnexpectedBlockOrder {
		t.Fatalf("expected ErrUnexpectedBlockOrder, got %v", err)
	}
}
