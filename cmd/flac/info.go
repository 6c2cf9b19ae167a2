package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/losslessaudio/flac"
)

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <input.flac>",
		Short: "Print a FLAC stream's STREAMINFO and seek table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printInfo(args[0])
		},
	}
	return cmd
}

func printInfo(flacPath string) error {
	r, err := os.Open(flacPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	d, err := flac.NewDecoder(r)
	if err != nil {
		return err
	}

	si := d.StreamInfo
	fmt.Printf("sample rate:     %d Hz\n", si.SampleRate)
	fmt.Printf("channels:        %d\n", si.Channels)
	fmt.Printf("bits per sample: %d\n", si.BitsPerSample)
	fmt.Printf("block size:      %d..%d samples\n", si.MinBlockSize, si.MaxBlockSize)
	fmt.Printf("frame size:      %d..%d bytes\n", si.MinFrameSize, si.MaxFrameSize)
	fmt.Printf("total samples:   %d\n", si.TotalSamples)
	if si.TotalSamples > 0 {
		duration := float64(si.TotalSamples) / float64(si.SampleRate)
		fmt.Printf("duration:        %.2fs\n", duration)
	}
	fmt.Printf("MD5:             %x\n", si.MD5)

	if d.SeekTable != nil {
		fmt.Printf("seek points:     %d\n", len(d.SeekTable.Points))
	}
	return nil
}
