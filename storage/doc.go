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


// Package storage provides the storage abstraction layer for lostfound.
//
// This package defines repository interfaces that decouple persistence from
// the matching engine. Listings, accounts, notifications, threshold
// preferences, checkpoints and the pending-job ledger each have their own
// repository so backends can be mixed: the embedded BadgerDB store
// implements all of them, PostgreSQL implements notifications and
// thresholds, and Redis implements thresholds.
//
// # Uniqueness
//
// NotificationRepository.InsertIfAbsent is the only place where duplicate
// notifications are prevented. Implementations must make the existence
// check and the insert a single atomic operation (a serializable
// transaction in BadgerDB, a UNIQUE constraint in PostgreSQL) so that
// concurrent evaluations of the same pair cannot both insert.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	repos, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repos.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
