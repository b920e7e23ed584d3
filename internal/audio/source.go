// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"spectro/internal/window"
)

// FileSource streams PCM frames from a WAV file as normalised float32.
type FileSource struct {
	decoder    *wav.Decoder
	buf        *audio.IntBuffer
	out        []float32
	sampleRate float64
	channels   int
	bitDepth   int
	scale      float32
	offset     int // Subtracted before scaling; unsigned 8-bit PCM is centred on 128.
	total      int64
}

// OpenWAV validates the header and positions the decoder at the PCM data.
func OpenWAV(r io.ReadSeeker) (*FileSource, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	format := dec.Format()
	bitDepth := int(dec.SampleBitDepth())
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth %d", bitDepth)
	}
	if format.NumChannels < 1 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid WAV format: %d channels @ %d Hz", format.NumChannels, format.SampleRate)
	}

	src := &FileSource{
		decoder:    dec,
		buf:        &audio.IntBuffer{Format: format, SourceBitDepth: bitDepth},
		sampleRate: float64(format.SampleRate),
		channels:   format.NumChannels,
		bitDepth:   bitDepth,
		scale:      1 / float32(int64(1)<<(bitDepth-1)),
		total:      dec.PCMLen() / int64(format.NumChannels*bitDepth/8),
	}
	if bitDepth == 8 {
		src.offset = 128
	}
	logger.Debugf("Opened WAV (%d ch @ %d Hz, %d bit)", src.channels, format.SampleRate, bitDepth)
	return src, nil
}

func (s *FileSource) SampleRate() float64 { return s.sampleRate }
func (s *FileSource) Channels() int       { return s.channels }
func (s *FileSource) BitDepth() int       { return s.bitDepth }

// TotalFrames returns the number of frames announced by the data chunk.
func (s *FileSource) TotalFrames() int64 { return s.total }

// Duration returns the length of the PCM data.
func (s *FileSource) Duration() time.Duration {
	return time.Duration(float64(s.total) / s.sampleRate * float64(time.Second))
}

// Next reads up to frames frames. The returned Frame's data is reused by the
// following call. io.EOF is returned once the data is exhausted.
func (s *FileSource) Next(frames int) (window.Frame, error) {
	if frames <= 0 {
		return window.Frame{}, fmt.Errorf("invalid frame count %d", frames)
	}

	n := frames * s.channels
	if cap(s.buf.Data) < n {
		s.buf.Data = make([]int, n)
		s.out = make([]float32, n)
	}
	s.buf.Data = s.buf.Data[:n]

	read, err := s.decoder.PCMBuffer(s.buf)
	if read == 0 {
		if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return window.Frame{}, io.EOF
		}
		return window.Frame{}, err
	}

	// Drop a trailing partial frame.
	read -= read % s.channels
	out := s.out[:read]
	for i, v := range s.buf.Data[:read] {
		out[i] = float32(v-s.offset) * s.scale
	}

	return window.Frame{
		SampleRate: s.sampleRate,
		Channels:   s.channels,
		Frames:     read / s.channels,
		Data:       out,
	}, nil
}

// FramesPer returns the number of source frames covering d.
func (s *FileSource) FramesPer(d time.Duration) int {
	return max(1, int(s.sampleRate*d.Seconds()+0.5))
}
