package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// wavBitDepth is the bit depth used for every WAV file elocute produces.
	wavBitDepth = 16

	// wavFormatPCM is the RIFF audio format tag for linear PCM.
	wavFormatPCM = 1
)

// EncodeWAV wraps w in a 16-bit mono RIFF/WAV container suitable for upload to
// a transcription service.
func EncodeWAV(w Waveform) ([]byte, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		data[i] = int(floatToInt16(s))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}

	ws := &writeSeeker{}
	enc := wav.NewEncoder(ws, w.SampleRate, wavBitDepth, 1, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("audio: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: close wav encoder: %w", err)
	}
	return ws.buf, nil
}

// DecodeWAV parses a PCM WAV file and returns its audio as a mono [Waveform].
// Multi-channel input is down-mixed by averaging.
func DecodeWAV(data []byte) (Waveform, error) {
	return ReadWAV(bytes.NewReader(data))
}

// ReadWAV decodes a PCM WAV stream from r. See [DecodeWAV].
func ReadWAV(r io.ReadSeeker) (Waveform, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Waveform{}, errors.New("audio: not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("audio: read wav samples: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return Waveform{}, ErrInvalidSampleRate
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return Waveform{}, fmt.Errorf("audio: unsupported wav bit depth %d", bitDepth)
	}

	samples := make([]float32, len(buf.Data))
	if bitDepth == 8 {
		// 8-bit WAV is unsigned with a 128 midpoint.
		for i, v := range buf.Data {
			samples[i] = float32(v-128) / 128.0
		}
	} else {
		scale := float32(int64(1) << (bitDepth - 1))
		for i, v := range buf.Data {
			samples[i] = float32(v) / scale
		}
	}

	return Waveform{
		Samples:    DownmixToMono(samples, buf.Format.NumChannels),
		SampleRate: buf.Format.SampleRate,
	}, nil
}

// writeSeeker is an in-memory io.WriteSeeker. The WAV encoder seeks back to
// patch chunk sizes once all samples are written, which bytes.Buffer cannot do.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		if end > cap(w.buf) {
			grown := make([]byte, end, max(end, 2*cap(w.buf)))
			copy(grown, w.buf)
			w.buf = grown
		} else {
			w.buf = w.buf[:end]
		}
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("audio: invalid seek whence")
	}
	if abs < 0 {
		return 0, errors.New("audio: negative seek position")
	}
	w.pos = int(abs)
	return abs, nil
}
