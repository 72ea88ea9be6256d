// Package msgs holds the messages sensors publish on the transport.
package msgs

import (
	"time"

	"github.com/zeusync/simsensors/internal/core/systems/physics"
)

// Message is implemented by every payload that can travel on a topic.
// TypeName must not dereference its receiver: it is called on zero values.
type Message interface {
	TypeName() string
}

// Time is a simulation timestamp split into seconds and nanoseconds.
type Time struct {
	Sec  int64 `json:"sec"`
	Nsec int32 `json:"nsec"`
}

// TimeFromDuration converts elapsed simulation time into a Time.
// Negative durations are normalized so that Nsec is always in [0, 1e9).
func TimeFromDuration(d time.Duration) Time {
	sec := int64(d / time.Second)
	nsec := int64(d % time.Second)
	if nsec < 0 {
		sec--
		nsec += int64(time.Second)
	}
	return Time{Sec: sec, Nsec: int32(nsec)}
}

func (t Time) Duration() time.Duration {
	return time.Duration(t.Sec)*time.Second + time.Duration(t.Nsec)
}

type HeaderEntry struct {
	Key   string   `json:"key"`
	Value []string `json:"value,omitempty"`
}

type Header struct {
	Stamp Time          `json:"stamp"`
	Data  []HeaderEntry `json:"data,omitempty"`
}

// Get returns the values stored under key.
func (h Header) Get(key string) ([]string, bool) {
	for _, e := range h.Data {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

type Vector3d struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func Vector3dFrom(v physics.Vector3) Vector3d {
	return Vector3d{X: v.X, Y: v.Y, Z: v.Z}
}

func (v Vector3d) Vector3() physics.Vector3 {
	return physics.Vec3(v.X, v.Y, v.Z)
}

const MagnetometerType = "simsensors.msgs.Magnetometer"

// Magnetometer carries a body-frame magnetic field reading in tesla.
type Magnetometer struct {
	Header     Header   `json:"header"`
	FieldTesla Vector3d `json:"field_tesla"`
}

func (Magnetometer) TypeName() string { return MagnetometerType }
