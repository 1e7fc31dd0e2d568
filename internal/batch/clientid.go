package batch

import (
	"fmt"

	"github.com/matthewbaird/adbatch/internal/types"
)

// ClientIDFor builds the temporary handle of the seq-th operation staged for
// a platform. The handle is what child operations reference until the
// entity is published.
func ClientIDFor(platform string, entity types.EntityType, seq int) string {
	return fmt.Sprintf("tmp_%s_%s_%d", platform, entity, seq)
}

// Correlator maps client ids to the platform ids assigned on publish.
type Correlator map[string]string

// Bind records the platform id of a published client id. Empty values are
// ignored.
func (c *Correlator) Bind(clientID, platformID string) {
	if clientID == "" || platformID == "" {
		return
	}
	if *c == nil {
		*c = make(Correlator)
	}
	(*c)[clientID] = platformID
}

// PlatformID returns the platform id bound to clientID.
func (c Correlator) PlatformID(clientID string) (string, bool) {
	id, ok := c[clientID]
	return id, ok
}

// Rewrite turns a client_id reference into a platform_id reference when the
// client id has been published. Other references are returned unchanged.
func (c Correlator) Rewrite(ref types.ParentRef) types.ParentRef {
	if ref.Kind != types.RefClientID {
		return ref
	}
	if id, ok := c[ref.Value]; ok {
		return types.ParentRef{Kind: types.RefPlatformID, Value: id}
	}
	return ref
}

func (c Correlator) clone() Correlator {
	if c == nil {
		return nil
	}
	out := make(Correlator, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
