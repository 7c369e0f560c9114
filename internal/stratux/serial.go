//go:build linux

package stratux

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenSerial opens path as a raw, 8N1 serial device at baud bps and
// returns the file handle, using golang.org/x/sys/unix termios ioctls
// directly rather than pulling in a separate serial-port library for
// one device.
func OpenSerial(path string, baud uint32) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("stratux: open %s: %w", path, err)
	}

	t, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stratux: get termios on %s: %w", path, err)
	}

	speed, err := termiosSpeed(baud)
	if err != nil {
		f.Close()
		return nil, err
	}

	cfmakeraw(t)
	t.Cflag |= unix.CREAD | unix.CLOCAL
	// Linux encodes the Bnnn constants in the CBAUD bits of c_cflag;
	// c_ispeed/c_ospeed are only consulted for BOTHER rates.
	t.Cflag &^= unix.CBAUD
	t.Cflag |= speed
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, t); err != nil {
		f.Close()
		return nil, fmt.Errorf("stratux: set termios on %s: %w", path, err)
	}
	return f, nil
}

// cfmakeraw puts t into the same "raw mode" termios state the C
// library helper of the same name produces: no line editing, no
// signal generation, 8-bit characters passed through untouched.
func cfmakeraw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
}

func termiosSpeed(baud uint32) (uint32, error) {
	switch baud {
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 921600:
		return unix.B921600, nil
	case 1000000:
		return unix.B1000000, nil
	case 1500000:
		return unix.B1500000, nil
	case 2000000:
		return unix.B2000000, nil
	case 3000000:
		return unix.B3000000, nil
	default:
		return 0, fmt.Errorf("stratux: unsupported baud rate %d", baud)
	}
}
