package ml

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

// Device names where tensors live and where inference runs, e.g. "cpu" or "cuda:0".
type Device string

// CPU is the host device.
const CPU Device = "cpu"

var deviceRegexp = regexp.MustCompile(`^(cpu|cuda(:[0-9]+)?|mps)$`)

// ParseDevice validates a device selector. An empty selector means CPU.
func ParseDevice(s string) (Device, error) {
	if s == "" {
		return CPU, nil
	}
	if !deviceRegexp.MatchString(s) {
		return "", errors.Errorf("invalid device %q, expected cpu, mps, cuda or cuda:N", s)
	}
	return Device(s), nil
}

// IsHost reports whether the device is host memory.
func (d Device) IsHost() bool {
	return d == CPU
}

func (d Device) String() string {
	return string(d)
}

// DeviceMismatchError is returned when data bound to one device is passed to a component
// bound to another.
type DeviceMismatchError struct {
	What     string
	Expected Device
	Actual   Device
}

func (e *DeviceMismatchError) Error() string {
	return fmt.Sprintf("%s is on device %q but expected device %q", e.What, e.Actual, e.Expected)
}

// CheckDevice returns a *DeviceMismatchError when actual differs from expected.
func CheckDevice(what string, expected, actual Device) error {
	if expected != actual {
		return &DeviceMismatchError{What: what, Expected: expected, Actual: actual}
	}
	return nil
}
