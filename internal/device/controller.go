package device

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/metervend/internal/config"
)

// Activation flags understood by the meter controller.
const (
	CmdActivate   = "1"
	CmdDeactivate = "0"
)

// Relay is the one-way channel to the meter-control hardware. Commands are
// short ASCII strings: a unit reading or an activation flag. There is no
// acknowledgement and no framing; delivery is best effort.
type Relay interface {
	Send(cmd string) error
}

// Controller relays commands to the physical controller over a byte stream
// (a TCP serial bridge in deployment). A single connection handle is shared
// by requests and the usage job; writes are mutex-serialized so concurrent
// senders cannot interleave bytes.
type Controller struct {
	mu          sync.Mutex
	addr        string
	dialTimeout time.Duration
	conn        net.Conn
}

// NewController creates a relay to the configured controller endpoint
func NewController(cfg config.DeviceConfig) *Controller {
	return &Controller{
		addr:        cfg.Addr,
		dialTimeout: time.Duration(cfg.DialTimeoutSeconds) * time.Second,
	}
}

// Send writes one command to the controller, dialing on first use. A failed
// write drops the connection so the next send redials; the error is returned
// to the caller rather than treated as fatal.
func (c *Controller) Send(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)
		if err != nil {
			return fmt.Errorf("controller dial %s: %w", c.addr, err)
		}
		c.conn = conn
		log.Printf("[Device] connected to controller at %s", c.addr)
	}

	if _, err := c.conn.Write([]byte(cmd)); err != nil {
		c.conn.Close()
		c.conn = nil
		return fmt.Errorf("controller write: %w", err)
	}
	return nil
}

// Close releases the controller connection
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Nop is a relay that discards every command. Used when no controller
// endpoint is configured.
type Nop struct{}

// Send discards the command
func (Nop) Send(string) error { return nil }
