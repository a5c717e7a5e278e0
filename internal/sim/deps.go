package sim

import (
	"log"
	"time"

	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
	"github.com/Jamesmykil253/MoBa-sub001/logging"
)

// Deps bundles the process-level collaborators the simulation borrows from
// its host. Every field is optional; normalized fills safe defaults so the
// loop and the engine never nil-check these.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	Publisher logging.Publisher
}

func (d Deps) normalized() Deps {
	if d.Logger == nil {
		d.Logger = telemetry.WrapLogger(log.Default())
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NewCounters()
	}
	if d.Clock == nil {
		d.Clock = logging.ClockFunc(time.Now)
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	return d
}
