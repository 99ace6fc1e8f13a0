//go:build linux

package v4l2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request numbers, _IOR/_IOW('V', nr, size).
const (
	vidiocQueryDVTimings   = 0x80845663 // VIDIOC_QUERY_DV_TIMINGS, also VIDIOC_SUBDEV_QUERY_DV_TIMINGS
	vidiocGDVTimings       = 0xc0845658 // VIDIOC_G_DV_TIMINGS
	vidiocSubscribeEvent   = 0x4020565a // VIDIOC_SUBSCRIBE_EVENT
	vidiocUnsubscribeEvent = 0x4020565b // VIDIOC_UNSUBSCRIBE_EVENT

	v4l2EventSourceChange = 5
	eventSubscriptionSize = 32
	eventChangesOffset    = 8 // u.src_change.changes
)

// struct v4l2_event is 120 bytes plus a timespec, rounded to 8.
var (
	eventSize     = (120 + int(unsafe.Sizeof(unix.Timespec{})) + 7) &^ 7
	vidiocDQEvent = uint(0x80000000) | uint(eventSize)<<16 | 'V'<<8 | 89
)

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func open(path string) (int, error) {
	return unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
}

// QueryDVTimings reads the timings the receiver currently detects on node.
// Absent or unusable signals are reported through State with a nil error;
// an error means the node could not be queried at all.
func QueryDVTimings(node string) (SignalStatus, error) {
	fd, err := open(node)
	if err != nil {
		return SignalStatus{State: SignalStateNoDevice}, fmt.Errorf("open %s: %w", node, err)
	}
	defer unix.Close(fd)

	buf := make([]byte, dvTimingsSize)
	err = ioctl(fd, vidiocQueryDVTimings, unsafe.Pointer(&buf[0]))
	if errors.Is(err, unix.ENOTTY) {
		// Some bridges only implement G_DV_TIMINGS.
		err = ioctl(fd, vidiocGDVTimings, unsafe.Pointer(&buf[0]))
	}
	if err != nil {
		state := stateForErrno(err)
		if state == SignalStateNotSupported {
			return SignalStatus{State: state}, fmt.Errorf("query dv timings on %s: %w", node, err)
		}
		return SignalStatus{State: state}, nil
	}

	bt, err := decodeDVTimings(buf)
	if err != nil {
		return SignalStatus{State: SignalStateNotSupported}, err
	}
	if !bt.Valid() {
		return SignalStatus{State: SignalStateNoSignal, Timings: bt}, nil
	}
	return SignalStatus{State: SignalStateLocked, Timings: bt}, nil
}

// stateForErrno maps the errors receivers use to describe their input.
func stateForErrno(err error) SignalState {
	switch {
	case errors.Is(err, unix.ENOLINK):
		return SignalStateNoLink
	case errors.Is(err, unix.ENOLCK):
		return SignalStateUnstable
	case errors.Is(err, unix.ERANGE):
		return SignalStateOutOfRange
	case errors.Is(err, unix.ENODATA):
		return SignalStateNoSignal
	default:
		return SignalStateNotSupported
	}
}

// WaitForSourceChange waits for a source change event with timeout.
// Returns the change flags on success, 0 on timeout, or an error.
func WaitForSourceChange(node string, timeout time.Duration) (uint32, error) {
	fd, err := open(node)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", node, err)
	}
	defer unix.Close(fd)

	var sub [eventSubscriptionSize]byte
	sub[0] = v4l2EventSourceChange
	if subErr := ioctl(fd, vidiocSubscribeEvent, unsafe.Pointer(&sub[0])); subErr != nil {
		if errors.Is(subErr, unix.ENOTTY) || errors.Is(subErr, unix.EINVAL) {
			return 0, ErrEventsNotSupported
		}
		return 0, subErr
	}
	defer func() { _ = ioctl(fd, vidiocUnsubscribeEvent, unsafe.Pointer(&sub[0])) }()

	// V4L2 events are signalled as priority data.
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLPRI}}
	ms := -1
	if timeout > 0 {
		ms = int(timeout / time.Millisecond)
	}
	for {
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, nil // Timeout
		}
		break
	}

	event := make([]byte, eventSize)
	if err := ioctl(fd, vidiocDQEvent, unsafe.Pointer(&event[0])); err != nil {
		return 0, err
	}
	if typ := binary.LittleEndian.Uint32(event[0:]); typ != v4l2EventSourceChange {
		return 0, nil
	}
	return binary.LittleEndian.Uint32(event[eventChangesOffset:]), nil
}
