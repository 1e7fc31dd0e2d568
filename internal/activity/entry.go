package activity

import (
	"encoding/json"
	"time"

	"github.com/matthewbaird/adbatch/internal/types"
)

// Roles an operation plays in an indexed event.
const (
	RoleBatch     = "batch"     // batch-level entry, no operation
	RoleSubject   = "subject"   // the operation the event acted on
	RolePublished = "published" // the operation received a platform id
)

// Entry is one event as seen from one index key: the batch itself
// (ClientID empty) or a single operation.
type Entry struct {
	EventID      string           `json:"eventId"`
	EventType    string           `json:"eventType"`
	OccurredAt   time.Time        `json:"occurredAt"`
	Platform     string           `json:"platform"`
	AdvertiserID string           `json:"advertiserId"`
	ClientID     string           `json:"clientId,omitempty"`
	EntityType   types.EntityType `json:"entityType,omitempty"`
	Role         string           `json:"role"`
	Summary      string           `json:"summary"`
	Payload      json.RawMessage  `json:"payload,omitempty"`
}
