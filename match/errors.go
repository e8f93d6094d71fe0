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


package match

import "errors"

var (
	// ErrListingSourceRequired is returned when a listing source is not provided.
	ErrListingSourceRequired = errors.New("listing source required")

	// ErrUserDirectoryRequired is returned when a user directory is not provided.
	ErrUserDirectoryRequired = errors.New("user directory required")

	// ErrThresholdSourceRequired is returned when a threshold source is not provided.
	ErrThresholdSourceRequired = errors.New("threshold source required")

	// ErrCommitterRequired is returned when a committer is not provided.
	ErrCommitterRequired = errors.New("committer required")

	// ErrInvalidWeights is returned for negative weights or weights not summing to 1.
	ErrInvalidWeights = errors.New("invalid scoring weights")
)
