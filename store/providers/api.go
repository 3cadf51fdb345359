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
	"hash"

	gnarkhash "github.com/consensys/gnark-crypto/hash"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"

	"github.com/councilnet/council/state"
	"github.com/councilnet/council/store/providers/dmt"
)

// StoreProviderDenseMerkleTree dense merkle tree journal provider
const StoreProviderDenseMerkleTree = "dmt"

// StoreProvider provides a common interface to interact with transition
// journal storage facilities
type StoreProvider interface {
	Contains(val []byte) bool
	Height() int
	Insert(val []byte) (root []byte, err error)
	Root() (root *string, err error)
	StateAt(epoch uint64) (*state.State, error)
}

// InitDenseMerkleTreeStoreProvider initializes a durable merkle tree journal
func InitDenseMerkleTreeStoreProvider(id uuid.UUID) *dmt.DMT {
	return dmt.InitDMT(dbconf.DatabaseConnection(), id, hashFactory())
}

func hashFactory() hash.Hash {
	return gnarkhash.MIMC_BN254.New()
}
