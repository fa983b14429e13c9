package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendshipStatus string

const (
	FriendshipStatusPending  FriendshipStatus = "pending"
	FriendshipStatusAccepted FriendshipStatus = "accepted"
	FriendshipStatusRejected FriendshipStatus = "rejected"
)

type Friendship struct {
	ID         uuid.UUID        `json:"id"`
	SenderID   uuid.UUID        `json:"sender_id"`
	ReceiverID uuid.UUID        `json:"receiver_id"`
	Status     FriendshipStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
}

// OtherParty returns the id of the user on the other side of the friendship.
func (f Friendship) OtherParty(userID uuid.UUID) uuid.UUID {
	if f.SenderID == userID {
		return f.ReceiverID
	}
	return f.SenderID
}

// Involves reports whether userID is the sender or the receiver.
func (f Friendship) Involves(userID uuid.UUID) bool {
	return f.SenderID == userID || f.ReceiverID == userID
}

type FriendProfile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
}

type FriendWithUser struct {
	Friendship
	Friend FriendProfile `json:"friend"`
}

type FriendRequest struct {
	Friendship
	Sender FriendProfile `json:"sender"`
}

type UserSearchResult struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
}
