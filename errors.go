package flac

import (
	"github.com/mewkiz/pkg/errutil"
	"github.com/pkg/errors"
)

// Sentinel errors a caller can match with errors.Is. Each corresponds
// to one bitstream- or integrity-error kind of §7; configuration and
// I/O errors are reported as plain wrapped errors instead, since they
// carry caller-specific detail rather than a fixed identity.
var (
	// ErrAbort is returned when a callback halts the current
	// operation; the instance is left in an aborted state.
	ErrAbort = errors.New("flac: aborted by callback")

	// ErrLostSync is reported (non-fatally) when the decoder's scan for
	// a frame sync code fails to find one where expected. The scan for
	// the stream sync code in NewDecoder does not report it: leading
	// bytes before the stream sync code are skipped silently.
	ErrLostSync = errors.New("flac: lost synchronization")

	// ErrUnparseableStream is fatal: the decoder found structurally
	// invalid metadata it cannot recover from.
	ErrUnparseableStream = errors.New("flac: unparseable stream")

	// ErrVerifyMismatch is fatal on encode: the internal verification
	// decoder's output disagreed with the pre-encode samples.
	ErrVerifyMismatch = errors.New("flac: verification mismatch between encoded and decoded samples")

	// ErrMd5Mismatch is returned by Decode at end of stream when MD5 checking
	// was never disabled (by a seek) and the accumulated MD5 does not
	// match STREAMINFO.
	ErrMd5Mismatch = errors.New("flac: decoded audio MD5 does not match STREAMINFO")
)

// configError wraps an invalid-configuration condition (§7) detected
// before the first frame is emitted.
func configError(format string, args ...interface{}) error {
	return errutil.Newf("flac: invalid configuration: "+format, args...)
}

// VerifyMismatchError reports the exact sample where a verification
// decode diverged from the pre-encode input (§4.3 step 8).
type VerifyMismatchError struct {
	AbsoluteSample uint64
	Frame          uint64
	Channel        int
	Subsample      int
	Expected       int32
	Got            int32
}

func (e *VerifyMismatchError) Error() string {
	return errutil.Newf(
		"flac: verify mismatch at sample %d (frame %d, channel %d, subsample %d): expected %d, got %d",
		e.AbsoluteSample, e.Frame, e.Channel, e.Subsample, e.Expected, e.Got,
	).Error()
}

func (e *VerifyMismatchError) Unwrap() error { return ErrVerifyMismatch }
