package faults

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Collector accumulates non-fatal faults. It is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	log    logrus.FieldLogger
	faults []*Error
}

// NewCollector returns a collector that logs each fault as it is recorded.
// A nil logger disables logging.
func NewCollector(log logrus.FieldLogger) *Collector {
	return &Collector{log: log}
}

// Record stores a fault. Errors that are not *Error are wrapped with the
// given kind so every stored entry is classified.
func (c *Collector) Record(kind Kind, op, subject string, err error) *Error {
	if err == nil {
		return nil
	}
	fe, ok := err.(*Error)
	if !ok {
		fe = New(kind, op, subject, err)
	}

	c.mu.Lock()
	c.faults = append(c.faults, fe)
	c.mu.Unlock()

	if c.log != nil {
		c.log.WithFields(logrus.Fields{
			"kind":    string(fe.Kind),
			"op":      fe.Op,
			"subject": fe.Subject,
		}).Warn(fe.Error())
	}
	return fe
}

// Faults returns a copy of the recorded faults in recording order.
func (c *Collector) Faults() []*Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Error, len(c.faults))
	copy(out, c.faults)
	return out
}

// Count returns the number of faults of the given kind.
func (c *Collector) Count(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.faults {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// Len returns the total number of recorded faults.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.faults)
}
