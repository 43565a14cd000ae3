// Package frame defines the canonical bus frame structure and helpers used
// across the monitor pipeline: creation, validation, class derivation, and
// display formatting.
package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxDataLen is the classic CAN payload limit in bytes.
const MaxDataLen = 8

// Frame represents one observed bus message in canonical form. A frame is
// immutable once handed to the pipeline; it leaves the system only by ring
// buffer eviction.
type Frame struct {
	Time        time.Time // When the frame was observed on the bus
	Class       string    // Message class (e.g. J1939 PGN rendered as decimal text)
	Instance    int       // Device instance within the class
	HasInstance bool      // Whether Instance is present (distinguishes real 0 from "unknown")
	Source      string    // Source address of the transmitting node
	Data        []byte    // Payload, 0..8 bytes
	IsError     bool      // Error frame, or a frame tagged malformed on ingest
}

// MalformedError reports a frame that fails basic shape validation. Such
// frames still occupy a buffer slot as error-tagged entries so error-rate
// statistics stay meaningful.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed frame: " + e.Reason
}

// New creates a frame with the observation time set to now. Transports that
// carry their own timestamps overwrite Time after creation.
func New(class, source string, data []byte) Frame {
	return Frame{
		Time:   time.Now().UTC(),
		Class:  class,
		Source: source,
		Data:   data,
	}
}

// WithInstance returns a copy of the frame carrying an explicit instance.
func (f Frame) WithInstance(instance int) Frame {
	f.Instance = instance
	f.HasInstance = true
	return f
}

// Validate checks basic frame shape. A nil result means the frame is well
// formed; a *MalformedError describes the first violation found.
func (f Frame) Validate() error {
	if strings.TrimSpace(f.Class) == "" {
		return &MalformedError{Reason: "empty message class"}
	}
	if strings.TrimSpace(f.Source) == "" {
		return &MalformedError{Reason: "empty source address"}
	}
	if len(f.Data) > MaxDataLen {
		return &MalformedError{Reason: fmt.Sprintf("payload %d bytes exceeds %d", len(f.Data), MaxDataLen)}
	}
	if f.Time.IsZero() {
		return &MalformedError{Reason: "zero timestamp"}
	}
	return nil
}

// DataHex returns the payload as upper-case hex without separators.
func (f Frame) DataHex() string {
	if len(f.Data) == 0 {
		return ""
	}
	const digits = "0123456789ABCDEF"
	b := make([]byte, 0, len(f.Data)*2)
	for _, v := range f.Data {
		b = append(b, digits[v>>4], digits[v&0x0F])
	}
	return string(b)
}

// FormatLine renders the frame as a single candump-flavoured display line:
//
//	(1699999999.123456) 0x21 61444/2#0102AABB
//
// Error-tagged frames carry a trailing " ERR" marker.
func (f Frame) FormatLine() string {
	var sb strings.Builder
	sb.Grow(48 + len(f.Data)*2)
	sb.WriteByte('(')
	sb.WriteString(strconv.FormatInt(f.Time.Unix(), 10))
	sb.WriteByte('.')
	fmt.Fprintf(&sb, "%06d", f.Time.Nanosecond()/1000)
	sb.WriteString(") ")
	sb.WriteString(f.Source)
	sb.WriteByte(' ')
	sb.WriteString(f.Class)
	if f.HasInstance {
		sb.WriteByte('/')
		sb.WriteString(strconv.Itoa(f.Instance))
	}
	sb.WriteByte('#')
	sb.WriteString(f.DataHex())
	if f.IsError {
		sb.WriteString(" ERR")
	}
	return sb.String()
}

// PGNFromID extracts the J1939 parameter group number from a 29-bit extended
// CAN identifier and renders it as the canonical class string. For PDU1
// frames (PF < 240) the destination-specific byte is cleared per J1939-21.
func PGNFromID(id uint32) string {
	pf := (id >> 16) & 0xFF
	pgn := (id >> 8) & 0x3FFFF
	if pf < 240 {
		pgn &^= 0xFF
	}
	return strconv.FormatUint(uint64(pgn), 10)
}

// SourceFromID extracts the J1939 source address from a 29-bit extended CAN
// identifier, rendered as 0x-prefixed hex.
func SourceFromID(id uint32) string {
	return "0x" + strconv.FormatUint(uint64(id&0xFF), 16)
}
