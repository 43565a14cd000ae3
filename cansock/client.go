// Package cansock implements a client for candump-style frame feeds served
// over TCP (can-utils log format, one frame per line):
//
//	(1699999999.123456) can0 0CF00400#0102030405060708
//
// The client owns its reconnection policy: the pipeline core only ever sees
// ordered, parsed frames on a buffered channel, and a full channel drops
// frames rather than blocking the reader.
package cansock

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ziutek/telnet"

	"canmon/frame"
)

const (
	// canEFFFlag marks a 29-bit extended identifier in candump logs.
	canEFFFlag = 0x80000000
	// canErrFlag marks an error frame.
	canErrFlag = 0x20000000
	canEFFMask = 0x1FFFFFFF
)

// Client reads candump lines from a remote feed and emits canonical frames.
type Client struct {
	host      string
	port      int
	name      string
	conn      *telnet.Conn
	connected bool
	shutdown  chan struct{}
	frameChan chan frame.Frame
	reconnect chan struct{}
	stopOnce  sync.Once
}

// NewClient creates a candump feed client.
func NewClient(host string, port int, name string) *Client {
	return &Client{
		host:      host,
		port:      port,
		name:      name,
		shutdown:  make(chan struct{}),
		frameChan: make(chan frame.Frame, 1000),
		reconnect: make(chan struct{}, 1),
	}
}

// Connect establishes the initial connection and starts the supervision
// loop. The first dial runs synchronously so failures reach the caller;
// later disconnects are handled by the background reconnect loop.
func (c *Client) Connect() error {
	if err := c.establishConnection(); err != nil {
		return err
	}
	go c.connectionSupervisor()
	return nil
}

func (c *Client) establishConnection() error {
	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	log.Printf("%s: connecting to %s...", c.displayName(), addr)

	conn, err := telnet.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.displayName(), err)
	}

	c.conn = conn
	c.connected = true
	log.Printf("%s: connection established", c.displayName())

	go c.readLoop(conn)
	return nil
}

// connectionSupervisor waits for disconnect notifications and runs the
// exponential backoff reconnect attempts while honoring shutdown.
func (c *Client) connectionSupervisor() {
	const (
		initialDelay = 5 * time.Second
		maxDelay     = 60 * time.Second
	)

	for {
		select {
		case <-c.shutdown:
			return
		case <-c.reconnect:
			if c.isShutdown() {
				return
			}
			delay := initialDelay
			for {
				if c.isShutdown() {
					return
				}
				log.Printf("%s: attempting reconnect...", c.displayName())
				if err := c.establishConnection(); err != nil {
					log.Printf("%s: reconnect failed: %v (retry in %s)", c.displayName(), err, delay)
					timer := time.NewTimer(delay)
					select {
					case <-timer.C:
					case <-c.shutdown:
						timer.Stop()
						return
					}
					delay *= 2
					if delay > maxDelay {
						delay = maxDelay
					}
					continue
				}
				break
			}
		}
	}
}

func (c *Client) readLoop(conn *telnet.Conn) {
	defer func() {
		c.connected = false
		conn.Close()
	}()

	for {
		select {
		case <-c.shutdown:
			log.Printf("%s: shutting down", c.displayName())
			return
		default:
			conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			line, err := conn.ReadString('\n')
			if err != nil {
				if c.isShutdown() {
					return
				}
				log.Printf("%s: read error: %v", c.displayName(), err)
				c.requestReconnect(err)
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			f, err := ParseLine(line)
			if err != nil {
				log.Printf("%s: skipping line: %v", c.displayName(), err)
				continue
			}
			select {
			case c.frameChan <- f:
			default:
				log.Printf("%s: frame channel full, dropping frame", c.displayName())
			}
		}
	}
}

// ParseLine parses one candump log line into a canonical frame. 29-bit
// identifiers are mapped to a J1939 PGN class and source address; 11-bit
// identifiers keep the raw identifier as class with the interface name as
// source. Error frames come out error-tagged with the raw identifier class.
func ParseLine(line string) (frame.Frame, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return frame.Frame{}, fmt.Errorf("expected 3 fields, got %d in %q", len(fields), line)
	}

	ts, err := parseTimestamp(fields[0])
	if err != nil {
		return frame.Frame{}, err
	}
	iface := fields[1]

	idStr, dataStr, ok := strings.Cut(fields[2], "#")
	if !ok {
		return frame.Frame{}, fmt.Errorf("missing '#' separator in %q", fields[2])
	}
	id64, err := strconv.ParseUint(idStr, 16, 32)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("bad identifier %q: %w", idStr, err)
	}
	id := uint32(id64)

	data, err := parseDataHex(strings.TrimPrefix(dataStr, "R"))
	if err != nil {
		return frame.Frame{}, err
	}

	var f frame.Frame
	switch {
	case id&canErrFlag != 0:
		f = frame.New("0x"+strings.ToUpper(idStr), iface, data)
		f.IsError = true
	case id&canEFFFlag != 0 || len(idStr) == 8:
		eff := id & canEFFMask
		f = frame.New(frame.PGNFromID(eff), frame.SourceFromID(eff), data)
	default:
		f = frame.New("0x"+strings.ToUpper(idStr), iface, data)
	}
	f.Time = ts
	return f, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return time.Time{}, fmt.Errorf("bad timestamp %q", s)
	}
	sec, frac, _ := strings.Cut(s[1:len(s)-1], ".")
	secs, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp seconds %q: %w", sec, err)
	}
	var micros int64
	if frac != "" {
		// Pad/truncate to microsecond precision.
		for len(frac) < 6 {
			frac += "0"
		}
		micros, err = strconv.ParseInt(frac[:6], 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad timestamp fraction %q: %w", frac, err)
		}
	}
	return time.Unix(secs, micros*1000).UTC(), nil
}

func parseDataHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length payload hex %q", s)
	}
	data := make([]byte, len(s)/2)
	for i := 0; i < len(data); i++ {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad payload hex %q: %w", s, err)
		}
		data[i] = byte(v)
	}
	return data, nil
}

// Frames returns the channel of parsed frames.
func (c *Client) Frames() <-chan frame.Frame {
	return c.frameChan
}

// IsConnected reports whether the client currently has a connection.
func (c *Client) IsConnected() bool {
	return c.connected
}

// Stop closes the feed connection and halts reconnect attempts.
func (c *Client) Stop() {
	log.Printf("Stopping %s client...", c.displayName())
	c.stopOnce.Do(func() {
		close(c.shutdown)
	})
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) isShutdown() bool {
	select {
	case <-c.shutdown:
		return true
	default:
		return false
	}
}

func (c *Client) requestReconnect(reason error) {
	if c.isShutdown() {
		return
	}
	if reason != nil {
		log.Printf("%s: scheduling reconnect after error: %v", c.displayName(), reason)
	}
	select {
	case c.reconnect <- struct{}{}:
	default:
	}
}

func (c *Client) displayName() string {
	if c.name != "" {
		return c.name
	}
	return "candump feed"
}
