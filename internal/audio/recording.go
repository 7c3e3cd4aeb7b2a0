// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"sync/atomic"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// recorder captures the raw input signal to a 16-bit mono WAV file.
// The sample buffer is allocated once, sized to the stream block, so
// write does not allocate on the callback thread.
type recorder struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *goaudio.IntBuffer
}

func (r *recorder) write(in []float32) {
	if len(in) > len(r.buf.Data) {
		in = in[:len(r.buf.Data)]
	}
	for i, s := range in {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		r.buf.Data[i] = int(s * 32767)
	}
	r.buf.Data = r.buf.Data[:len(in)]
	_ = r.encoder.Write(r.buf)
	r.buf.Data = r.buf.Data[:cap(r.buf.Data)]
}

// StartRecording arms WAV capture of the raw input. The flag flip is
// atomic so the callback picks the recorder up on its next block.
func (e *Engine) StartRecording(filename string) error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	sampleRate := int(e.config.Audio.SampleRate)
	e.rec = &recorder{
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, 16, 1, 1),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: 1,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: 16,
			Data:           make([]int, e.config.Audio.FramesPerBuffer),
		},
	}

	atomic.StoreInt32(&e.isRecording, 1)
	return nil
}

// StopRecording disarms capture and flushes the WAV file. Safe to call
// when no recording is active.
func (e *Engine) StopRecording() error {
	if atomic.LoadInt32(&e.isRecording) == 0 {
		return nil
	}

	atomic.StoreInt32(&e.isRecording, 0)

	rec := e.rec
	e.rec = nil
	if rec == nil {
		return nil
	}

	if err := rec.encoder.Close(); err != nil {
		rec.file.Close()
		return err
	}
	return rec.file.Close()
}
