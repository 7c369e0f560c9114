//go:build !linux

package stratux

import (
	"fmt"
	"os"

	"uat978/internal/uaterr"
)

// OpenSerial is unavailable outside Linux: the termios ioctls in
// serial.go are Linux-specific.
func OpenSerial(path string, baud uint32) (*os.File, error) {
	return nil, uaterr.Config("stratux: open serial", fmt.Errorf("Stratux serial support requires a Linux build"))
}
