package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a compact content-derived identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Kind says whether a listing reports a lost or a found item.
type Kind string

const (
	KindLost  Kind = "lost"
	KindFound Kind = "found"
)

// Opposite returns the kind a listing of this kind can be matched against.
func (k Kind) Opposite() Kind {
	if k == KindLost {
		return KindFound
	}
	return KindLost
}

// Status is the lifecycle state of a listing.
type Status string

const (
	StatusActive    Status = "active"
	StatusClaimed   Status = "claimed"
	StatusWithdrawn Status = "withdrawn"
)

// Listing is a lost or found item report.
// Everything except Status is immutable once the listing has been matched.
type Listing struct {
	ID          string    `json:"id" validate:"required,excludes=0x7C"`
	OwnerID     string    `json:"ownerId" validate:"required"`
	Kind        Kind      `json:"kind" validate:"required,oneof=lost found"`
	Category    string    `json:"category" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Status      Status    `json:"status" validate:"required,oneof=active claimed withdrawn"`
	CreatedAt   time.Time `json:"createdAt" validate:"required"`
}

// IsActive reports whether the listing can take part in matching.
func (l *Listing) IsActive() bool {
	return l.Status == StatusActive
}

// PairSeparator joins the two listing IDs of a pair key. Listing IDs may not
// contain it.
const PairSeparator = "|"

// PairKey returns the canonical, order independent key for two listing IDs.
// Format: min|max
func PairKey(id1, id2 string) string {
	if id2 < id1 {
		id1, id2 = id2, id1
	}
	return id1 + PairSeparator + id2
}

// Breakdown holds the individual sub-scores of a similarity computation.
type Breakdown struct {
	Category    float64 `json:"categoryScore"`
	Title       float64 `json:"titleScore"`
	Description float64 `json:"descriptionScore"`
	Location    float64 `json:"locationScore"`
}

// Confidence buckets a composite score for display.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// SimilarityResult is the outcome of scoring one candidate against a subject.
// It is computed on demand and never persisted.
type SimilarityResult struct {
	SubjectID          string     `json:"subjectId"`
	CandidateID        string     `json:"candidateId"`
	CandidateOwnerID   string     `json:"candidateOwnerId"`
	CandidateCreatedAt time.Time  `json:"candidateCreatedAt"`
	Score              float64    `json:"score"`
	Breakdown          Breakdown  `json:"breakdown"`
	Confidence         Confidence `json:"confidence"`
	CommonKeywords     []string   `json:"commonKeywords,omitempty"`
}

// CommitResult reports which sides of a pair received a new notification.
// A false side means the recipient already had one for the pair.
type CommitResult struct {
	CreatedForA bool `json:"createdForA"`
	CreatedForB bool `json:"createdForB"`
}

// Created reports whether any notification was written.
func (r CommitResult) Created() bool {
	return r.CreatedForA || r.CreatedForB
}

// NotificationType identifies what a notification is about.
type NotificationType string

const NotificationMatchFound NotificationType = "match_found"

// Notification tells a user about a probable match for one of their listings.
// RelatedListingID is always the recipient's own listing.
type Notification struct {
	ID               string           `json:"id"`
	RecipientID      string           `json:"recipientUserId"`
	Type             NotificationType `json:"type"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	RelatedListingID string           `json:"relatedListingId"`
	MatchedListingID string           `json:"matchedListingId"`
	PairKey          string           `json:"pairKey"`
	Similarity       float64          `json:"similarity"`
	Read             bool             `json:"read"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// NotificationID derives the identifier of the notification a recipient gets for a pair.
// Equal inputs always produce the same ID, whichever store persists it.
func NotificationID(recipientID, pairKey string) string {
	return fmt.Sprintf("%016x", uint64(IDFromContent(recipientID+"#"+pairKey)))
}

// DefaultThreshold is the similarity a user must see before being notified,
// unless they chose their own value.
const DefaultThreshold = 0.6

// ThresholdPreference is a user's personal match sensitivity.
type ThresholdPreference struct {
	UserID    string    `json:"userId"`
	Threshold float64   `json:"threshold"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Checkpoint records how far a background processor has progressed.
type Checkpoint struct {
	ProcessorType string
	Watermark     time.Time
	UpdatedAt     time.Time
}

// PendingJob marks a listing whose evaluation has been scheduled but not finished.
type PendingJob struct {
	ListingID  string
	EnqueuedAt time.Time
	Attempts   int
}
