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
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/councilnet/council/common"
)

// LocalVRFProvider is the CSPRNG fallback; the proof is a commitment which
// binds the random number to the session and seed but carries no signature,
// so third parties cannot verify unpredictability
type LocalVRFProvider struct{}

// InitLocalVRFProvider initializes the fallback provider
func InitLocalVRFProvider() *LocalVRFProvider {
	return &LocalVRFProvider{}
}

// Fulfill draws the random number from the local CSPRNG
func (p *LocalVRFProvider) Fulfill(sessionID string, seed uint64) (*Fulfillment, error) {
	entropy, err := common.RandomBytes(8)
	if err != nil {
		return nil, fmt.Errorf("failed to fulfill VRF request for session %s; %s", sessionID, err.Error())
	}

	random := binary.BigEndian.Uint64(entropy)
	return &Fulfillment{
		RandomNumber: random,
		Proof:        localCommitment(sessionID, seed, random),
	}, nil
}

// Verify checks the commitment only; a matching proof does not attest
// to unpredictability of the random number
func (p *LocalVRFProvider) Verify(sessionID string, seed, randomNumber uint64, proof []byte) (bool, error) {
	if len(proof) == 0 || len(proof) > MaxProofSize {
		return false, fmt.Errorf("invalid VRF proof size: %d bytes", len(proof))
	}

	expected := localCommitment(sessionID, seed, randomNumber)
	if len(proof) != len(expected) {
		return false, nil
	}
	for i := range proof {
		if proof[i] != expected[i] {
			return false, nil
		}
	}
	return true, nil
}

// Verifiable implementation of the VRFProvider interface
func (p *LocalVRFProvider) Verifiable() bool {
	return false
}

// PublicKey implementation of the VRFProvider interface; no key material exists
func (p *LocalVRFProvider) PublicKey() []byte {
	return nil
}

func localCommitment(sessionID string, seed, randomNumber uint64) []byte {
	digest := sha256.New()
	digest.Write([]byte(sessionID))

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	digest.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], randomNumber)
	digest.Write(buf[:])

	return digest.Sum(nil)
}
