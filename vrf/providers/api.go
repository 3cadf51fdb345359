/*
 * Copyright 2023-2025 Councilnet, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package providers

import (
	"github.com/councilnet/council/common"
)

// VRFProviderEdDSA eddsa/mimc verifiable randomness provider
const VRFProviderEdDSA = "eddsa"

// VRFProviderLocal local CSPRNG fallback provider; not independently verifiable
const VRFProviderLocal = "local"

// MaxProofSize is the upper bound on persisted proof blobs
const MaxProofSize = 256

// Fulfillment is the output of a VRF round for a committed seed
type Fulfillment struct {
	RandomNumber uint64 `json:"random_number"`
	Proof        []byte `json:"proof"`
}

// VRFProvider provides a common interface to fulfill and re-verify
// committed randomness requests
type VRFProvider interface {
	// Fulfill produces the random number and proof for the given session and committed seed
	Fulfill(sessionID string, seed uint64) (*Fulfillment, error)

	// Verify returns true iff the proof attests that the random number was
	// produced from the given session and seed under this provider's key
	Verify(sessionID string, seed, randomNumber uint64, proof []byte) (bool, error)

	// Verifiable returns true when proofs can be re-verified by third parties
	Verifiable() bool

	// PublicKey returns the provider verification key, if any
	PublicKey() []byte
}

// VRFProviderFactory initializes the named VRF provider
func VRFProviderFactory(provider string, signingKey *string) VRFProvider {
	switch provider {
	case VRFProviderEdDSA:
		return InitEdDSAVRFProvider(signingKey)
	case VRFProviderLocal:
		return InitLocalVRFProvider()
	default:
		common.Log.Warningf("failed to initialize VRF provider; unknown provider: %s", provider)
	}

	return nil
}
