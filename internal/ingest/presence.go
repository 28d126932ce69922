package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/example/campus-carpool/internal/models"
)

// DecodePresence parses a presence message into a validated directory record.
func DecodePresence(b []byte) (models.DriverCandidate, error) {
	var u models.PresenceUpdate
	if err := json.Unmarshal(b, &u); err != nil {
		return models.DriverCandidate{}, fmt.Errorf("decode presence: %w", err)
	}
	return u.Candidate()
}
