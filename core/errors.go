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


package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates a request that can never succeed as given.
	// It is never retried automatically.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates a missing listing, notification or owner.
	ErrNotFound = errors.New("not found")

	// ErrTransientStore indicates a backing store that could not be reached.
	// Operations failing with it are safe to retry.
	ErrTransientStore = errors.New("store unavailable")

	// ErrInvalidListing indicates a Listing failed validation.
	ErrInvalidListing = fmt.Errorf("%w: invalid listing", ErrInvalidArgument)

	// ErrInvalidThreshold indicates a threshold outside [0,1].
	ErrInvalidThreshold = fmt.Errorf("%w: threshold must be within [0,1]", ErrInvalidArgument)

	// ErrInvalidPairKey indicates a pair key that does not match its listings.
	ErrInvalidPairKey = fmt.Errorf("%w: invalid pair key", ErrInvalidArgument)

	// ErrEmptyUserID indicates a missing user identifier.
	ErrEmptyUserID = fmt.Errorf("%w: user id cannot be empty", ErrInvalidArgument)
)
