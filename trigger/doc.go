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


// Package trigger schedules match evaluations in the background.
//
// Creating a listing must not wait for scoring, so OnListingCreated records a
// pending job, hands the evaluation to a worker pool and returns. Jobs retry
// with exponential backoff and are removed from the ledger once they succeed.
//
// Evaluations are idempotent, which makes at-least-once delivery enough.
// After a crash, Recover resubmits every job still in the ledger and rescans
// recent listings that never produced a notification, covering listings whose
// job was never recorded at all.
package trigger
