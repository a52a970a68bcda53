package engine

import (
	"bytes"
	"io"
	"sync"
)

// Capture is an io.Writer installed as guest stdout/stderr. wazero fixes
// stdio at instantiation, so a single Capture lives as long as the instance
// and records only between Start and Stop. Outside a recording, writes go to
// the passthrough writer, or nowhere.
type Capture struct {
	passthrough io.Writer
	buf         bytes.Buffer
	mu          sync.Mutex
	recording   bool
}

// NewCapture returns a Capture that forwards idle writes to passthrough,
// which may be nil.
func NewCapture(passthrough io.Writer) *Capture {
	return &Capture{passthrough: passthrough}
}

func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording {
		return c.buf.Write(p)
	}
	if c.passthrough != nil {
		return c.passthrough.Write(p)
	}
	return len(p), nil
}

// Start discards anything recorded earlier and begins recording.
func (c *Capture) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Reset()
	c.recording = true
}

// Stop ends the recording and returns what was written since Start.
func (c *Capture) Stop() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = false
	out := c.buf.String()
	c.buf.Reset()
	return out
}
