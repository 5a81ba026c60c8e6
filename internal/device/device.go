// Package device abstracts the capture hardware the capture and voice
// sessions drive: cameras, microphones and an audio output.
package device

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied means the user or OS refused access to a device.
	ErrPermissionDenied = errors.New("device: permission denied")
	ErrNotFound         = errors.New("device: not found")
	ErrStopped          = errors.New("device: stream stopped")
)

type Kind string

const (
	KindVideoInput Kind = "videoinput"
	KindAudioInput Kind = "audioinput"
)

// Facing is the preferred camera direction.
type Facing string

const (
	FacingAny         Facing = ""
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

type Info struct {
	ID     string
	Label  string
	Kind   Kind
	Facing Facing
}

type CameraConstraints struct {
	DeviceID string
	Facing   Facing
}

// Media is an encoded still image or clip.
type Media struct {
	Data []byte
	MIME string
}

type Camera interface {
	// Devices lists the available video inputs.
	Devices(ctx context.Context) ([]Info, error)
	// Open acquires a live stream matching c. An exact DeviceID wins over
	// Facing.
	Open(ctx context.Context, c CameraConstraints) (VideoStream, error)
}

// VideoStream is a live camera stream. Stop releases the hardware and is
// safe to call more than once.
type VideoStream interface {
	DeviceID() string
	Active() bool
	// Frame grabs the current frame as an encoded still.
	Frame(ctx context.Context) (Media, error)
	// Record starts accumulating an encoded clip.
	Record(ctx context.Context) (Recorder, error)
	Stop()
}

// Recorder accumulates a clip until Stop finalizes it.
type Recorder interface {
	Stop() (Media, error)
}

type MicConstraints struct {
	DeviceID         string
	NoiseSuppression bool
	EchoCancellation bool
	SampleRate       int
	Channels         int
}

type Microphone interface {
	Open(ctx context.Context, c MicConstraints) (AudioStream, error)
}

// AudioStream yields mono 16-bit PCM chunks. Read returns io.EOF when the
// source is exhausted and ErrStopped after Stop.
type AudioStream interface {
	SampleRate() int
	Read(ctx context.Context) ([]int16, error)
	Stop()
}

// Player plays one encoded clip, returning when playback ends. Cancelling
// ctx pauses playback.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}
