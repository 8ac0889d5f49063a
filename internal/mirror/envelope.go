// v0
// internal/mirror/envelope.go
package mirror

import (
	"encoding/json"

	"github.com/nrg-champ/telemetry-stream/internal/telemetry"
)

// Envelope is the mirrored payload: the sample fields plus the run that
// produced them.
type Envelope struct {
	RunID string `json:"run_id"`
	telemetry.Sample
}

func encode(runID string, s telemetry.Sample) ([]byte, error) {
	return json.Marshal(Envelope{RunID: runID, Sample: s})
}
