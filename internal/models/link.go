package models

import "time"

// Link is a shortened link persisted in the database.
// The clicks column is the durable counter; the live value advances in the
// cache and is written back asynchronously by the click-sync worker.
type Link struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Code        string     `gorm:"uniqueIndex;size:30;not null" json:"code"`
	Destination string     `gorm:"not null" json:"destination"`
	Title       string     `gorm:"size:255" json:"title,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	MaxClicks   *int64     `json:"maxClicks,omitempty"`
	Clicks      int64      `gorm:"not null;default:0" json:"clicks"`
	OwnerID     *uint      `json:"ownerId,omitempty"`
}

// LinkSnapshot is the cacheable view of a Link: every field except the click
// count. Click totals live in a separate cache counter, so evicting or
// refreshing a snapshot never touches a count.
type LinkSnapshot struct {
	ID          uint       `json:"id"`
	Code        string     `json:"code"`
	Destination string     `json:"destination"`
	Title       string     `json:"title,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	MaxClicks   *int64     `json:"maxClicks,omitempty"`
	OwnerID     *uint      `json:"ownerId,omitempty"`
}

// Snapshot returns the cacheable view of the link.
func (l *Link) Snapshot() *LinkSnapshot {
	return &LinkSnapshot{
		ID:          l.ID,
		Code:        l.Code,
		Destination: l.Destination,
		Title:       l.Title,
		CreatedAt:   l.CreatedAt,
		ExpiresAt:   l.ExpiresAt,
		MaxClicks:   l.MaxClicks,
		OwnerID:     l.OwnerID,
	}
}

// Link rebuilds a Link from the snapshot. Clicks is zero: a snapshot carries
// no count, the caller resolves the live value from the cache counter.
func (s *LinkSnapshot) Link() *Link {
	return &Link{
		ID:          s.ID,
		Code:        s.Code,
		Destination: s.Destination,
		Title:       s.Title,
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
		MaxClicks:   s.MaxClicks,
		OwnerID:     s.OwnerID,
	}
}
