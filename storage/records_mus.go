package storage

import (
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/lostfound/core"
)

// Record serializers. Timestamps are stored as Unix microseconds in UTC.

type musEncoder struct {
	bs []byte
	n  int
}

func (e *musEncoder) writeString(v string) { e.n += ord.String.Marshal(v, e.bs[e.n:]) }
func (e *musEncoder) writeBool(v bool) { e.n += ord.Bool.Marshal(v, e.bs[e.n:]) }
func (e *musEncoder) writeInt64(v int64) { e.n += varint.Int64.Marshal(v, e.bs[e.n:]) }
func (e *musEncoder) writeFloat64(v float64) {
	e.n += varint.Uint64.Marshal(math.Float64bits(v), e.bs[e.n:])
}
func (e *musEncoder) writeTime(v time.Time) { e.writeInt64(v.UnixMicro()) }

type musDecoder struct {
	bs  []byte
	n   int
	err error
}

func (d *musDecoder) readString() (v string) {
	if d.err != nil {
		return
	}
	var n int
	v, n, d.err = ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	return
}

func (d *musDecoder) readBool() (v bool) {
	if d.err != nil {
		return
	}
	var n int
	v, n, d.err = ord.Bool.Unmarshal(d.bs[d.n:])
	d.n += n
	return
}

func (d *musDecoder) readInt64() (v int64) {
	if d.err != nil {
		return
	}
	var n int
	v, n, d.err = varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += n
	return
}

func (d *musDecoder) readFloat64() float64 {
	if d.err != nil {
		return 0
	}
	bits, n, err := varint.Uint64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return math.Float64frombits(bits)
}

func (d *musDecoder) readTime() time.Time {
	us := d.readInt64()
	if d.err != nil {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func sizeTime(v time.Time) int { return varint.Int64.Size(v.UnixMicro()) }
func sizeFloat64(v float64) int { return varint.Uint64.Size(math.Float64bits(v)) }
func sizeString(v string) int { return ord.String.Size(v) }
func sizeBool(v bool) int { return ord.Bool.Size(v) }
func sizeInt(v int) int { return varint.Int64.Size(int64(v)) }

// ListingMUS serializes core.Listing.
var ListingMUS = listingMUS{}

type listingMUS struct{}

func (listingMUS) Size(v core.Listing) (size int) {
	return sizeString(v.ID) + sizeString(v.OwnerID) + sizeString(string(v.Kind)) +
		sizeString(v.Category) + sizeString(v.Title) + sizeString(v.Description) +
		sizeString(v.Location) + sizeString(string(v.Status)) + sizeTime(v.CreatedAt)
}

func (listingMUS) Marshal(v core.Listing, bs []byte) (n int) {
	e := musEncoder{bs: bs}
	e.writeString(v.ID)
	e.writeString(v.OwnerID)
	e.writeString(string(v.Kind))
	e.writeString(v.Category)
	e.writeString(v.Title)
	e.writeString(v.Description)
	e.writeString(v.Location)
	e.writeString(string(v.Status))
	e.writeTime(v.CreatedAt)
	return e.n
}

func (listingMUS) Unmarshal(bs []byte) (v core.Listing, n int, err error) {
	d := musDecoder{bs: bs}
	v.ID = d.readString()
	v.OwnerID = d.readString()
	v.Kind = core.Kind(d.readString())
	v.Category = d.readString()
	v.Title = d.readString()
	v.Description = d.readString()
	v.Location = d.readString()
	v.Status = core.Status(d.readString())
	v.CreatedAt = d.readTime()
	return v, d.n, d.err
}

// NotificationMUS serializes core.Notification.
var NotificationMUS = notificationMUS{}

type notificationMUS struct{}

func (notificationMUS) Size(v core.Notification) (size int) {
	return sizeString(v.ID) + sizeString(v.RecipientID) + sizeString(string(v.Type)) +
		sizeString(v.Title) + sizeString(v.Message) + sizeString(v.RelatedListingID) +
		sizeString(v.MatchedListingID) + sizeString(v.PairKey) + sizeFloat64(v.Similarity) +
		sizeBool(v.Read) + sizeTime(v.CreatedAt)
}

func (notificationMUS) Marshal(v core.Notification, bs []byte) (n int) {
	e := musEncoder{bs: bs}
	e.writeString(v.ID)
	e.writeString(v.RecipientID)
	e.writeString(string(v.Type))
	e.writeString(v.Title)
	e.writeString(v.Message)
	e.writeString(v.RelatedListingID)
	e.writeString(v.MatchedListingID)
	e.writeString(v.PairKey)
	e.writeFloat64(v.Similarity)
	e.writeBool(v.Read)
	e.writeTime(v.CreatedAt)
	return e.n
}

func (notificationMUS) Unmarshal(bs []byte) (v core.Notification, n int, err error) {
	d := musDecoder{bs: bs}
	v.ID = d.readString()
	v.RecipientID = d.readString()
	v.Type = core.NotificationType(d.readString())
	v.Title = d.readString()
	v.Message = d.readString()
	v.RelatedListingID = d.readString()
	v.MatchedListingID = d.readString()
	v.PairKey = d.readString()
	v.Similarity = d.readFloat64()
	v.Read = d.readBool()
	v.CreatedAt = d.readTime()
	return v, d.n, d.err
}

// ThresholdPreferenceMUS serializes core.ThresholdPreference.
var ThresholdPreferenceMUS = thresholdPreferenceMUS{}

type thresholdPreferenceMUS struct{}

func (thresholdPreferenceMUS) Size(v core.ThresholdPreference) (size int) {
	return sizeString(v.UserID) + sizeFloat64(v.Threshold) + sizeTime(v.UpdatedAt)
}

func (thresholdPreferenceMUS) Marshal(v core.ThresholdPreference, bs []byte) (n int) {
	e := musEncoder{bs: bs}
	e.writeString(v.UserID)
	e.writeFloat64(v.Threshold)
	e.writeTime(v.UpdatedAt)
	return e.n
}

func (thresholdPreferenceMUS) Unmarshal(bs []byte) (v core.ThresholdPreference, n int, err error) {
	d := musDecoder{bs: bs}
	v.UserID = d.readString()
	v.Threshold = d.readFloat64()
	v.UpdatedAt = d.readTime()
	return v, d.n, d.err
}

// CheckpointMUS serializes core.Checkpoint.
var CheckpointMUS = checkpointMUS{}

type checkpointMUS struct{}

func (checkpointMUS) Size(v core.Checkpoint) (size int) {
	return sizeString(v.ProcessorType) + sizeTime(v.Watermark) + sizeTime(v.UpdatedAt)
}

func (checkpointMUS) Marshal(v core.Checkpoint, bs []byte) (n int) {
	e := musEncoder{bs: bs}
	e.writeString(v.ProcessorType)
	e.writeTime(v.Watermark)
	e.writeTime(v.UpdatedAt)
	return e.n
}

func (checkpointMUS) Unmarshal(bs []byte) (v core.Checkpoint, n int, err error) {
	d := musDecoder{bs: bs}
	v.ProcessorType = d.readString()
	v.Watermark = d.readTime()
	v.UpdatedAt = d.readTime()
	return v, d.n, d.err
}

// PendingJobMUS serializes core.PendingJob.
var PendingJobMUS = pendingJobMUS{}

type pendingJobMUS struct{}

func (pendingJobMUS) Size(v core.PendingJob) (size int) {
	return sizeString(v.ListingID) + sizeTime(v.EnqueuedAt) + sizeInt(v.Attempts)
}

func (pendingJobMUS) Marshal(v core.PendingJob, bs []byte) (n int) {
	e := musEncoder{bs: bs}
	e.writeString(v.ListingID)
	e.writeTime(v.EnqueuedAt)
	e.writeInt64(int64(v.Attempts))
	return e.n
}

func (pendingJobMUS) Unmarshal(bs []byte) (v core.PendingJob, n int, err error) {
	d := musDecoder{bs: bs}
	v.ListingID = d.readString()
	v.EnqueuedAt = d.readTime()
	v.Attempts = int(d.readInt64())
	return v, d.n, d.err
}
