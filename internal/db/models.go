package db

import (
	"time"
)

// User table
type User struct {
	ID               uint64 `gorm:"primaryKey;autoIncrement"`
	Name             string `gorm:"size:64;not null"`
	Email            string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash     string `gorm:"size:255;not null"`
	Age              int    `gorm:"not null"`
	Gender           string `gorm:"size:16;not null"`
	GenderPreference string `gorm:"size:16;not null"`
	Bio              string `gorm:"size:512"`
	Image            string `gorm:"size:512"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// Swipe represents an actor's like/dislike edge toward a target.
//
// Composite PK: (ActorID, TargetID)
//   - A single row per directed pair, so an account can never hold a like
//     and a dislike for the same target at the same time.
//
// Index:
//   - idx_target_liked(target_id, liked) for the reciprocal-like existence
//     check during match formation.
//
// Likes are monotonic in this core: once liked, the edge is never flipped
// back, so match detection only needs the reciprocal row to exist.
type Swipe struct {
	ActorID   uint64    `gorm:"primaryKey"`
	TargetID  uint64    `gorm:"primaryKey;index:idx_target_liked,priority:1"`
	Liked     bool      `gorm:"not null;index:idx_target_liked,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Match is an unordered user pair stored sorted (UserAID < UserBID).
//
// The composite PK doubles as the uniqueness guarantee: a pair can be
// inserted exactly once, so a racing duplicate insert surfaces as a
// key conflict instead of a second match.
type Match struct {
	UserAID   uint64    `gorm:"primaryKey"`
	UserBID   uint64    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Message is a chat message between two matched users.
//
// Index:
//   - idx_receiver_sender_read(receiver_id, sender_id, read) serves the
//     unread recount queries (per-sender and total).
//
// The attachment fields are all empty when a message is text-only;
// AttachmentKey is the object store reference used for cleanup on delete.
type Message struct {
	ID             string    `gorm:"primaryKey;size:36"`
	SenderID       uint64    `gorm:"not null;index:idx_receiver_sender_read,priority:2"`
	ReceiverID     uint64    `gorm:"not null;index:idx_receiver_sender_read,priority:1"`
	Content        string    `gorm:"type:text"`
	AttachmentURL  string    `gorm:"size:512"`
	AttachmentName string    `gorm:"size:255"`
	AttachmentType string    `gorm:"size:128"`
	AttachmentSize int64
	AttachmentKey  string    `gorm:"size:255"`
	Read           bool      `gorm:"not null;default:false;index:idx_receiver_sender_read,priority:3"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index"`
}
