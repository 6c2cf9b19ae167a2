package main

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/losslessaudio/flac"
)

func newEncodeCmd() *cobra.Command {
	var (
		force        bool
		blockSize    int
		maxLPCOrder  int
		midSide      bool
		exhaustive   bool
		verify       bool
		seekInterval float64
	)

	cmd := &cobra.Command{
		Use:   "encode <input.wav> [input.wav ...]",
		Short: "Encode one or more WAV files to FLAC",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, wavPath := range args {
				opts := encodeOpts{
					force: force, blockSize: blockSize, maxLPCOrder: maxLPCOrder,
					midSide: midSide, exhaustive: exhaustive, verify: verify,
					seekInterval: seekInterval,
				}
				if err := encodeFile(wavPath, opts); err != nil {
					return errors.Wrapf(err, "encode %q", wavPath)
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&force, "force", "f", false, "overwrite the output FLAC file if present")
	flags.IntVarP(&blockSize, "block-size", "b", 4096, "samples per block")
	flags.IntVarP(&maxLPCOrder, "max-lpc-order", "l", 8, "maximum LPC order to try (0 disables LPC)")
	flags.BoolVarP(&midSide, "mid-side", "m", true, "allow mid/side stereo decorrelation")
	flags.BoolVarP(&exhaustive, "exhaustive", "e", false, "search every fixed and LPC order instead of heuristics")
	flags.BoolVar(&verify, "verify", false, "decode every frame back and compare against the input as it is written")
	flags.Float64Var(&seekInterval, "seek-interval", 10, "seconds between seek table points (0 disables the seek table)")

	return cmd
}

type encodeOpts struct {
	force        bool
	blockSize    int
	maxLPCOrder  int
	midSide      bool
	exhaustive   bool
	verify       bool
	seekInterval float64
}

func encodeFile(wavPath string, opts encodeOpts) error {
	r, err := os.Open(wavPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return errors.Errorf("invalid WAV file %q", wavPath)
	}
	if err := dec.FwdToPCM(); err != nil {
		return errors.WithStack(err)
	}
	sampleRate := int(dec.SampleRate)
	channels := int(dec.NumChans)
	bps := int(dec.BitDepth)

	flacPath := pathutil.TrimExt(wavPath) + ".flac"
	if !opts.force && osutil.Exists(flacPath) {
		return errors.Errorf("output file %q already exists; use -f to overwrite", flacPath)
	}
	w, err := os.Create(flacPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer w.Close()

	cfg := flac.DefaultEncoderConfig(channels, sampleRate, bps)
	cfg.BlockSize = opts.blockSize
	cfg.MaxLPCOrder = opts.maxLPCOrder
	cfg.EnableMidSide = opts.midSide && channels == 2
	cfg.ExhaustiveModelSearch = opts.exhaustive
	cfg.VerifyOnEncode = opts.verify
	if opts.seekInterval <= 0 {
		cfg.SeekTableInterval = 0
	} else {
		cfg.SeekTableInterval = uint64(opts.seekInterval * float64(sampleRate))
	}

	enc, err := flac.NewEncoder(w, cfg)
	if err != nil {
		return err
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, channels*opts.blockSize),
		SourceBitDepth: bps,
	}
	planar := make([][]int32, channels)
	for c := range planar {
		planar[c] = make([]int32, opts.blockSize)
	}

	for !dec.EOF() {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return errors.WithStack(err)
		}
		if n == 0 {
			break
		}
		samplesPerChannel := n / channels
		for i := 0; i < samplesPerChannel; i++ {
			for c := 0; c < channels; c++ {
				planar[c][i] = int32(buf.Data[i*channels+c])
			}
		}
		if err := enc.WriteSamples(planar, samplesPerChannel); err != nil {
			return err
		}
	}

	return enc.Close()
}
