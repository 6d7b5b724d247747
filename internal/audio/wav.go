package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// WAV format codes from the "fmt " chunk
const (
	formatPCM       = 1
	formatIEEEFloat = 3
)

// Buffer holds decoded audio samples ready for analysis
type Buffer struct {
	Samples    []float32 // mono samples, channel-averaged
	SampleRate int
	Channels   int // channel count of the source file
}

// Duration returns the buffer length in seconds
func (b *Buffer) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// ReadWAVFile reads a WAV file from disk and decodes it to a mono buffer
func ReadWAVFile(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	buf, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return buf, nil
}

// DecodeWAV decodes a RIFF/WAVE stream to a mono sample buffer.
// 16-bit PCM and 32-bit float formats are supported; multi-channel
// audio is downmixed by averaging all channels per frame.
func DecodeWAV(r io.Reader) (*Buffer, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var (
		audioFormat   uint16
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
		haveFmt       bool
	)

	// Walk sub-chunks until the data chunk; ignore anything else (LIST, fact, ...)
	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("no data chunk found")
			}
			return nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			fmtChunk := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, fmtChunk); err != nil {
				return nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			if chunkSize < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", chunkSize)
			}
			audioFormat = binary.LittleEndian.Uint16(fmtChunk[0:2])
			channels = binary.LittleEndian.Uint16(fmtChunk[2:4])
			sampleRate = binary.LittleEndian.Uint32(fmtChunk[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(fmtChunk[14:16])
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("data chunk before fmt chunk")
			}
			if channels == 0 {
				return nil, fmt.Errorf("invalid channel count: 0")
			}
			data := make([]byte, chunkSize)
			if n, err := io.ReadFull(r, data); err != nil {
				// Tolerate a truncated final chunk; recorders crash mid-write
				if err == io.ErrUnexpectedEOF {
					data = data[:n]
				} else {
					return nil, fmt.Errorf("failed to read data chunk: %w", err)
				}
			}
			samples, err := decodeSamples(data, audioFormat, bitsPerSample, int(channels))
			if err != nil {
				return nil, err
			}
			return &Buffer{
				Samples:    samples,
				SampleRate: int(sampleRate),
				Channels:   int(channels),
			}, nil

		default:
			// Skip unknown chunk (chunks are word-aligned)
			skip := int64(chunkSize)
			if chunkSize%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("failed to skip %s chunk: %w", chunkID, err)
			}
		}
	}
}

// decodeSamples converts raw interleaved PCM bytes to mono float32 in [-1, 1]
func decodeSamples(data []byte, audioFormat uint16, bitsPerSample uint16, channels int) ([]float32, error) {
	var bytesPerSample int
	switch {
	case audioFormat == formatPCM && bitsPerSample == 16:
		bytesPerSample = 2
	case audioFormat == formatIEEEFloat && bitsPerSample == 32:
		bytesPerSample = 4
	default:
		return nil, fmt.Errorf("unsupported WAV format: format=%d bits=%d", audioFormat, bitsPerSample)
	}

	frameBytes := bytesPerSample * channels
	frames := len(data) / frameBytes
	mono := make([]float32, frames)

	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			off := i*frameBytes + ch*bytesPerSample
			if bytesPerSample == 2 {
				s := int16(binary.LittleEndian.Uint16(data[off : off+2]))
				sum += float32(s) / 32768.0
			} else {
				bits := binary.LittleEndian.Uint32(data[off : off+4])
				sum += math.Float32frombits(bits)
			}
		}
		mono[i] = sum / float32(channels)
	}

	return mono, nil
}
