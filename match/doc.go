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


// Package match finds probable matches between lost and found listings.
//
// Matching is a transparent heuristic rather than a search engine. Each
// candidate is scored by the Scorer from four weighted signals:
//   - Category equality
//   - Jaccard overlap of normalized title tokens
//   - Jaccard overlap of normalized description tokens
//   - Location equality, containment or shared place keywords
//
// The Orchestrator selects candidates for a subject listing, scores them,
// keeps the pairs whose score clears the thresholds of both owners and hands
// each survivor to a Committer. It keeps no state between evaluations, so
// concurrent evaluations are safe as long as the Committer is idempotent.
package match
