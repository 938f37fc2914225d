package history

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// TimestampIDGenerator produces "<unix millis>-<uuid>" identifiers, which
// sort roughly by creation time and are safe to use as file names.
type TimestampIDGenerator struct {
	Clock Clock
}

func (g TimestampIDGenerator) New() string {
	c := g.Clock
	if c == nil {
		c = RealClock{}
	}
	return fmt.Sprintf("%d-%s", c.Now().UnixMilli(), uuid.New().String())
}
