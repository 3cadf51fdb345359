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
	crand "crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/councilnet/council/common"
)

// EdDSAVRFProvider fulfills randomness requests with an eddsa signature over
// the twisted Edwards form of bn254; the proof is the signature over
// mimc(session_id, seed) and the random number is derived from the proof, so
// any holder of the public key can re-verify both
type EdDSAVRFProvider struct {
	privKey *eddsa.PrivateKey
	pubKey  eddsa.PublicKey
}

// InitEdDSAVRFProvider initializes the provider from the given hex-encoded
// signing key; a new key is generated when none is configured
func InitEdDSAVRFProvider(signingKey *string) *EdDSAVRFProvider {
	var privKey *eddsa.PrivateKey

	if signingKey != nil {
		raw, err := hex.DecodeString(*signingKey)
		if err != nil {
			common.Log.Warningf("failed to decode configured VRF signing key; %s", err.Error())
			return nil
		}
		privKey = &eddsa.PrivateKey{}
		_, err = privKey.SetBytes(raw)
		if err != nil {
			common.Log.Warningf("failed to parse configured VRF signing key; %s", err.Error())
			return nil
		}
	} else {
		var err error
		privKey, err = eddsa.GenerateKey(crand.Reader)
		if err != nil {
			common.Log.Warningf("failed to generate ephemeral VRF signing key; %s", err.Error())
			return nil
		}
		common.Log.Debug("generated ephemeral VRF signing key; fulfillments will not survive restart")
	}

	return &EdDSAVRFProvider{
		privKey: privKey,
		pubKey:  privKey.PublicKey,
	}
}

// InitEdDSAVRFVerifier initializes a verify-only provider from the given
// serialized verification key; Fulfill is unavailable on the result
func InitEdDSAVRFVerifier(publicKey []byte) *EdDSAVRFProvider {
	var pubKey eddsa.PublicKey
	_, err := pubKey.SetBytes(publicKey)
	if err != nil {
		common.Log.Warningf("failed to parse VRF verification key; %s", err.Error())
		return nil
	}

	return &EdDSAVRFProvider{
		pubKey: pubKey,
	}
}

// Fulfill signs the committed (session_id, seed) pair and derives the random number
func (p *EdDSAVRFProvider) Fulfill(sessionID string, seed uint64) (*Fulfillment, error) {
	if p.privKey == nil {
		return nil, errors.New("VRF provider initialized without signing key")
	}

	digest := commitmentDigest(sessionID, seed)

	sig, err := p.privKey.Sign(digest, mimc.NewMiMC())
	if err != nil {
		return nil, fmt.Errorf("failed to sign VRF commitment for session %s; %s", sessionID, err.Error())
	}

	if len(sig) > MaxProofSize {
		return nil, fmt.Errorf("VRF proof of %d bytes exceeds bound of %d", len(sig), MaxProofSize)
	}

	return &Fulfillment{
		RandomNumber: randomNumberFromProof(sig),
		Proof:        sig,
	}, nil
}

// Verify re-verifies the signature and the derivation of the random number
func (p *EdDSAVRFProvider) Verify(sessionID string, seed, randomNumber uint64, proof []byte) (bool, error) {
	if len(proof) == 0 || len(proof) > MaxProofSize {
		return false, fmt.Errorf("invalid VRF proof size: %d bytes", len(proof))
	}

	digest := commitmentDigest(sessionID, seed)

	verified, err := p.pubKey.Verify(proof, digest, mimc.NewMiMC())
	if err != nil {
		return false, err
	}
	if !verified {
		return false, nil
	}

	return randomNumberFromProof(proof) == randomNumber, nil
}

// Verifiable implementation of the VRFProvider interface
func (p *EdDSAVRFProvider) Verifiable() bool {
	return true
}

// PublicKey returns the serialized eddsa verification key
func (p *EdDSAVRFProvider) PublicKey() []byte {
	pub := p.pubKey.Bytes()
	return pub[:]
}

// commitmentDigest computes mimc(session_id, seed) with each input reduced
// into the scalar field the way the signature scheme expects
func commitmentDigest(sessionID string, seed uint64) []byte {
	hFunc := mimc.NewMiMC()

	var elem fr.Element
	elem.SetBytes([]byte(sessionID))
	b := elem.Bytes()
	hFunc.Write(b[:])

	var seedBytes [8]byte
	binary.BigEndian.PutUint64(seedBytes[:], seed)
	elem.SetBytes(seedBytes[:])
	b = elem.Bytes()
	hFunc.Write(b[:])

	return hFunc.Sum(nil)
}

// randomNumberFromProof derives the fulfilled random number as the leading
// 8 bytes, big-endian, of mimc over the field-reduced proof chunks
func randomNumberFromProof(proof []byte) uint64 {
	hFunc := mimc.NewMiMC()

	chunkSize := fr.Bytes
	for index := 0; index*chunkSize < len(proof); index++ {
		var elem fr.Element
		end := (index + 1) * chunkSize
		if end > len(proof) {
			end = len(proof)
		}
		elem.SetBytes(proof[index*chunkSize : end])
		b := elem.Bytes()
		hFunc.Write(b[:])
	}

	return binary.BigEndian.Uint64(hFunc.Sum(nil)[:8])
}
