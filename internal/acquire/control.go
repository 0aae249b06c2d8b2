package acquire

import (
	"errors"
	"os"
)

// Marker is the shared control signal between the operator and the
// acquisition loop: acquisition is ACTIVE exactly while the marker file
// exists. The ground station creates and removes it over the transport;
// only this process polls it, so no further locking is needed.
type Marker struct {
	Path string
}

// Engaged reports whether the marker is present.
func (m Marker) Engaged() bool {
	_, err := os.Stat(m.Path)
	return err == nil
}

// Clear removes the marker so the unit starts switched off. Idempotent.
func (m Marker) Clear() error {
	err := os.Remove(m.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Set creates the marker. Idempotent; used by local bench control.
func (m Marker) Set() error {
	f, err := os.OpenFile(m.Path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
