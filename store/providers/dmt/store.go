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

package dmt

import (
	"encoding/hex"
	"fmt"
	"hash"
	"sync"

	"github.com/jinzhu/gorm"
	uuid "github.com/kthomas/go.uuid"
	"github.com/providenetwork/merkletree"

	"github.com/councilnet/council/common"
	"github.com/councilnet/council/state"
)

// DMT is a dense merkle tree journal; every committed record transition
// appends its canonical digest as a leaf, and the resulting root commits to
// the full transition history of the journal
type DMT struct {
	db     *gorm.DB
	hash   hash.Hash
	id     *uuid.UUID
	mutex  *sync.Mutex
	tree   *merkletree.MerkleTree
	values []merkletree.Content
}

// InitDMT initializes a dense merkle tree journal, replaying any previously
// persisted entries
func InitDMT(db *gorm.DB, id uuid.UUID, h hash.Hash) *DMT {
	instance := &DMT{
		db:     db,
		hash:   h,
		id:     &id,
		mutex:  &sync.Mutex{},
		values: make([]merkletree.Content, 0),
	}

	if err := instance.load(); err != nil {
		common.Log.Warningf("failed to load dense merkle tree journal: %s; %s", id, err.Error())
		return nil
	}

	return instance
}

// load replays persisted journal entries in insertion order and verifies the
// reconstructed tree
func (s *DMT) load() error {
	rows, err := s.db.Raw("SELECT value FROM journal_entries WHERE journal_id = ? ORDER BY position", s.id).Rows()
	if err != nil {
		return fmt.Errorf("failed to resolve journal entries for journal: %s; %s", s.id, err.Error())
	}
	defer rows.Close()

	for rows.Next() {
		var value []byte
		err = rows.Scan(&value)
		if err != nil {
			return fmt.Errorf("failed to scan journal entry; %s", err.Error())
		}
		s.values = append(s.values, &treeContent{
			hash:  s.hash,
			value: value,
		})
	}

	if len(s.values) == 0 {
		return nil
	}

	tree, err := merkletree.NewTreeWithHashStrategy(s.values, s.hashStrategy)
	if err != nil {
		return fmt.Errorf("failed to rebuild dense merkle tree; %s", err.Error())
	}

	valid, err := tree.VerifyTree()
	if err != nil {
		return fmt.Errorf("failed to verify dense merkle tree; %s", err.Error())
	}
	if !valid {
		return fmt.Errorf("failed to verify dense merkle tree for journal %s", s.id)
	}

	s.tree = tree
	common.Log.Debugf("replayed %d entries for journal %s; root: %s", len(s.values), s.id, hex.EncodeToString(tree.MerkleRoot()))
	return nil
}

func (s *DMT) hashStrategy() hash.Hash {
	return s.hash
}

// commit persists the appended entry at its position
func (s *DMT) commit(position int, val []byte) error {
	db := s.db.Exec("INSERT INTO journal_entries (journal_id, position, value) VALUES (?, ?, ?)", s.id, position, val)
	if db.RowsAffected == 0 {
		return fmt.Errorf("failed to persist entry %d within journal: %s", position, s.id)
	}
	return nil
}

// Contains returns true if the given digest is committed to by the current root
func (s *DMT) Contains(val []byte) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.tree == nil {
		return false
	}

	incl, err := s.tree.VerifyContent(&treeContent{
		hash:  s.hash,
		value: val,
	})
	if err != nil {
		return false
	}
	return incl
}

// Height returns the number of committed leaves
func (s *DMT) Height() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.values)
}

// Insert appends the given digest as the next leaf and returns the new root
func (s *DMT) Insert(val []byte) (root []byte, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry := make([]byte, len(val))
	copy(entry, val)

	s.values = append(s.values, &treeContent{
		hash:  s.hash,
		value: entry,
	})

	if s.tree == nil {
		s.tree, err = merkletree.NewTreeWithHashStrategy(s.values, s.hashStrategy)
	} else {
		err = s.tree.RebuildTreeWith(s.values)
	}
	if err != nil {
		s.values = s.values[:len(s.values)-1]
		return nil, err
	}

	err = s.commit(len(s.values)-1, entry)
	if err != nil {
		return nil, err
	}

	return s.tree.MerkleRoot(), nil
}

// Root returns the hex-encoded root committing to the current journal state
func (s *DMT) Root() (root *string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.tree == nil || len(s.tree.MerkleRoot()) == 0 {
		return nil, fmt.Errorf("journal %s does not contain a valid root", s.id)
	}
	return common.StringOrNil(hex.EncodeToString(s.tree.MerkleRoot())), nil
}

// StateAt recomputes the journal state as of the given epoch; epoch n is the
// state after the first n committed transitions
func (s *DMT) StateAt(epoch uint64) (*state.State, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if epoch == 0 || uint64(len(s.values)) < epoch {
		return nil, fmt.Errorf("journal %s has no state at epoch %d", s.id, epoch)
	}

	subtree, err := merkletree.NewTreeWithHashStrategy(s.values[:epoch], s.hashStrategy)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute journal state at epoch %d; %s", epoch, err.Error())
	}

	values := make([]string, 0, epoch)
	for _, leaf := range s.values[:epoch] {
		digest, err := leaf.CalculateHash()
		if err != nil {
			return nil, err
		}
		values = append(values, hex.EncodeToString(digest))
	}

	claims := []*state.StateClaim{{
		Cardinality: epoch,
		Path:        []string{},
		Root:        common.StringOrNil(hex.EncodeToString(subtree.MerkleRoot())),
		Values:      values,
	}}

	return &state.State{
		JournalID:   s.id,
		Epoch:       epoch,
		StateClaims: claims,
	}, nil
}
