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
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateListing validates a Listing according to domain rules.
//
// Validation rules:
//   - ID, OwnerID, Category and Title must not be empty
//   - ID must not contain the pair key separator
//   - Kind must be lost or found
//   - Status must be active, claimed or withdrawn
//   - CreatedAt must be set
//
// Description and Location may be empty; they simply score zero.
func ValidateListing(listing *Listing) error {
	if listing == nil {
		return fmt.Errorf("%w: listing is nil", ErrInvalidListing)
	}
	if err := validatorInstance().Struct(listing); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListing, err)
	}
	return nil
}

// ValidateThreshold checks that a threshold lies within [0,1].
func ValidateThreshold(value float64) error {
	if math.IsNaN(value) || value < 0 || value > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, value)
	}
	return nil
}

// ValidatePair checks that pairKey is the canonical key of a and b
// and that the two listings can form a match.
func ValidatePair(pairKey string, a, b *Listing) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: listing is nil", ErrInvalidPairKey)
	}
	for _, id := range []string{a.ID, b.ID} {
		if strings.Contains(id, PairSeparator) {
			return fmt.Errorf("%w: listing id %q contains %q", ErrInvalidPairKey, id, PairSeparator)
		}
	}
	if pairKey != PairKey(a.ID, b.ID) {
		return fmt.Errorf("%w: %q does not identify %s and %s", ErrInvalidPairKey, pairKey, a.ID, b.ID)
	}
	if a.ID == b.ID {
		return fmt.Errorf("%w: listing cannot match itself", ErrInvalidPairKey)
	}
	if a.OwnerID == b.OwnerID {
		return fmt.Errorf("%w: listings share owner %s", ErrInvalidPairKey, a.OwnerID)
	}
	return nil
}
