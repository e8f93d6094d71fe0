package badger

import (
	"encoding/binary"
	"time"
)

// Key prefixes for different data types
const (
	listingPrefix            = "lstrec:"
	listingDatePrefix        = "lstrecd:"
	listingOwnerPrefix       = "lstreco:"
	userPrefix               = "usrrec:"
	notificationPrefix       = "ntfrec:"
	notificationRecipientIdx = "ntfrcp:"
	notificationUniqueIdx    = "ntfunq:"
	notificationListingIdx   = "ntflst:"
	thresholdPrefix          = "thrpref:"
	checkpointPrefix         = "chkpt:"
	pendingJobPrefix         = "jobpend:"
)

// separator terminates variable-length key segments so one user's or
// listing's keys never share a prefix with another's.
const separator = 0x00

// compositeKey concatenates a prefix and variable-length segments,
// each segment terminated by separator.
func compositeKey(prefix string, segments ...string) []byte {
	size := len(prefix)
	for _, s := range segments {
		size += len(s) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, s := range segments {
		buf = append(buf, s...)
		buf = append(buf, separator)
	}
	return buf
}

// appendTimestamp appends a BigEndian timestamp so lexicographic order matches time order.
// Times before the Unix epoch, including the zero time, sort as the epoch.
func appendTimestamp(buf []byte, ts time.Time) []byte {
	micros := max(ts.UnixMicro(), 0)
	return binary.BigEndian.AppendUint64(buf, uint64(micros))
}

// makeListingKey generates a key for a listing by ID.
func makeListingKey(id string) []byte {
	return compositeKey(listingPrefix, id)
}

// makeListingDateKey generates a composite key for the creation date index.
// Format: prefix timestamp id
func makeListingDateKey(createdAt time.Time, id string) []byte {
	buf := appendTimestamp([]byte(listingDatePrefix), createdAt)
	return append(buf, id...)
}

// makePartialListingDateKey generates a partial key for date range queries.
func makePartialListingDateKey(createdAt time.Time) []byte {
	return appendTimestamp([]byte(listingDatePrefix), createdAt)
}

// makeListingOwnerKey generates a composite key for the owner index.
// Format: prefix owner 0x00 id
func makeListingOwnerKey(ownerID, id string) []byte {
	return append(makePartialListingOwnerKey(ownerID), id...)
}

func makePartialListingOwnerKey(ownerID string) []byte {
	return compositeKey(listingOwnerPrefix, ownerID)
}

func makeUserKey(userID string) []byte {
	return compositeKey(userPrefix, userID)
}

// makeNotificationKey generates a key for a notification by ID.
func makeNotificationKey(id string) []byte {
	return compositeKey(notificationPrefix, id)
}

// makeNotificationRecipientKey generates a composite key for the per-recipient
// index. Format: prefix recipient 0x00 timestamp id
func makeNotificationRecipientKey(recipientID string, createdAt time.Time, id string) []byte {
	buf := appendTimestamp(makePartialNotificationRecipientKey(recipientID), createdAt)
	return append(buf, id...)
}

func makePartialNotificationRecipientKey(recipientID string) []byte {
	return compositeKey(notificationRecipientIdx, recipientID)
}

// makeNotificationUniqueKey generates the key enforcing one notification
// per (recipient, pair). Format: prefix recipient 0x00 pairKey 0x00
func makeNotificationUniqueKey(recipientID, pairKey string) []byte {
	return compositeKey(notificationUniqueIdx, recipientID, pairKey)
}

// makeNotificationListingKey generates a composite key for the listing index.
// Format: prefix listing 0x00 notificationID
func makeNotificationListingKey(listingID, notificationID string) []byte {
	return append(makePartialNotificationListingKey(listingID), notificationID...)
}

func makePartialNotificationListingKey(listingID string) []byte {
	return compositeKey(notificationListingIdx, listingID)
}

func makeThresholdKey(userID string) []byte {
	return compositeKey(thresholdPrefix, userID)
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return compositeKey(checkpointPrefix, processorType)
}

func makePendingJobKey(listingID string) []byte {
	return compositeKey(pendingJobPrefix, listingID)
}
