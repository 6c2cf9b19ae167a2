package main

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/losslessaudio/flac"
)

func newDecodeCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "decode <input.flac> [input.flac ...]",
		Short: "Decode one or more FLAC files to WAV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, flacPath := range args {
				if err := decodeFile(flacPath, force); err != nil {
					return errors.Wrapf(err, "decode %q", flacPath)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite the output WAV file if present")
	return cmd
}

func decodeFile(flacPath string, force bool) error {
	r, err := os.Open(flacPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	d, err := flac.NewDecoder(r)
	if err != nil {
		return err
	}

	wavPath := pathutil.TrimExt(flacPath) + ".wav"
	if !force && osutil.Exists(wavPath) {
		return errors.Errorf("output file %q already exists; use -f to overwrite", wavPath)
	}
	w, err := os.Create(wavPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer w.Close()

	const wavFormat = 1 // WAVE_FORMAT_PCM
	enc := wav.NewEncoder(w, int(d.StreamInfo.SampleRate), int(d.StreamInfo.BitsPerSample), int(d.StreamInfo.Channels), wavFormat)

	d.OnError = func(err error) error {
		fmt.Fprintf(os.Stderr, "flac: %q: %v\n", flacPath, err)
		return nil // keep decoding past non-fatal bitstream errors.
	}
	d.OnWrite = func(info flac.FrameInfo, channels [][]int32) error {
		buf := &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: info.Channels, SampleRate: info.SampleRate},
			Data:           make([]int, info.Channels*info.BlockSize),
			SourceBitDepth: info.BitsPerSample,
		}
		for i := 0; i < info.BlockSize; i++ {
			for c := 0; c < info.Channels; c++ {
				buf.Data[i*info.Channels+c] = int(channels[c][i])
			}
		}
		return enc.Write(buf)
	}

	if err := d.Decode(); err != nil {
		return err
	}
	return enc.Close()
}
