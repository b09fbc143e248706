package domain

// RelationshipStatus is the effective sender->receiver messaging relationship
// as seen from the first user's side. It is what gates the composer UI.
type RelationshipStatus string

const (
	RelationNone            RelationshipStatus = "none"
	RelationPendingOutgoing RelationshipStatus = "pending-outgoing"
	RelationPendingIncoming RelationshipStatus = "pending-incoming"
	RelationAccepted        RelationshipStatus = "accepted"
	RelationRejected        RelationshipStatus = "rejected"
)
