// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/poiesic/lostfound/core"
)

// MarshalRef serializes a record reference (an index value) to bytes.
func MarshalRef(ref string) []byte {
	buf := make([]byte, ord.String.Size(ref))
	ord.String.Marshal(ref, buf)
	return buf
}

// UnmarshalRef deserializes a record reference from bytes.
func UnmarshalRef(data []byte) (string, error) {
	ref, _, err := ord.String.Unmarshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return ref, nil
}

// MarshalListing serializes a Listing to bytes.
func MarshalListing(listing *core.Listing) []byte {
	buf := make([]byte, ListingMUS.Size(*listing))
	ListingMUS.Marshal(*listing, buf)
	return buf
}

// UnmarshalListing deserializes a Listing from bytes.
func UnmarshalListing(data []byte) (*core.Listing, error) {
	listing, _, err := ListingMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &listing, nil
}

// MarshalNotification serializes a Notification to bytes.
func MarshalNotification(n *core.Notification) []byte {
	buf := make([]byte, NotificationMUS.Size(*n))
	NotificationMUS.Marshal(*n, buf)
	return buf
}

// UnmarshalNotification deserializes a Notification from bytes.
func UnmarshalNotification(data []byte) (*core.Notification, error) {
	n, _, err := NotificationMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &n, nil
}

// MarshalThresholdPreference serializes a ThresholdPreference to bytes.
func MarshalThresholdPreference(pref *core.ThresholdPreference) []byte {
	buf := make([]byte, ThresholdPreferenceMUS.Size(*pref))
	ThresholdPreferenceMUS.Marshal(*pref, buf)
	return buf
}

// UnmarshalThresholdPreference deserializes a ThresholdPreference from bytes.
func UnmarshalThresholdPreference(data []byte) (*core.ThresholdPreference, error) {
	pref, _, err := ThresholdPreferenceMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &pref, nil
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	buf := make([]byte, CheckpointMUS.Size(*checkpoint))
	CheckpointMUS.Marshal(*checkpoint, buf)
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	checkpoint, _, err := CheckpointMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &checkpoint, nil
}

// MarshalPendingJob serializes a PendingJob to bytes.
func MarshalPendingJob(job *core.PendingJob) []byte {
	buf := make([]byte, PendingJobMUS.Size(*job))
	PendingJobMUS.Marshal(*job, buf)
	return buf
}

// UnmarshalPendingJob deserializes a PendingJob from bytes.
func UnmarshalPendingJob(data []byte) (*core.PendingJob, error) {
	job, _, err := PendingJobMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &job, nil
}
