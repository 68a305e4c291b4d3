package event

import "time"

// Kinds of catalog events recorded in the outbox.
const (
	KindProductCreated  = "product.created"
	KindProductUpdated  = "product.updated"
	KindProductDeleted  = "product.deleted"
	KindProductReserved = "product.reserved"
	KindUploadStored    = "upload.stored"
)

// Event is an outbox record. Handlers append events inline with the write
// that produced them; the outbox worker dispatches them asynchronously.
type Event struct {
	ID           string            `json:"id"`
	Kind         string            `json:"kind"`
	Payload      map[string]string `json:"payload,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	DispatchedAt time.Time         `json:"dispatched_at,omitempty"`
}

// Pending reports whether the event still awaits dispatch.
func (e Event) Pending() bool { return e.DispatchedAt.IsZero() }
