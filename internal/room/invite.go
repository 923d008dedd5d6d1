package room

import "time"

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteRevoked  InviteStatus = "revoked"
)

// Invite lets an account into a private room. Invites vanish with their room.
type Invite struct {
	RoomID    int
	Inviter   string
	Invitee   string
	Status    InviteStatus
	CreatedAt time.Time
}

// InviteSummary describes a pending invite from the invitee's point of view.
type InviteSummary struct {
	Invite Invite
	Room   Snapshot
}
