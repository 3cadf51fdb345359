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

package store

import (
	"fmt"
	"sync"

	dbconf "github.com/kthomas/go-db-config"
	provide "github.com/provideplatform/provide-go/api"

	"github.com/councilnet/council/common"
	"github.com/councilnet/council/state"
	journalstorage "github.com/councilnet/council/store/providers"
)

// Journal model; one append-only transition journal per record kind
type Journal struct {
	provide.Model

	Kind     *string `sql:"not null" json:"kind"`
	Provider *string `sql:"not null" json:"provider"`
	Root     *string `json:"root"`
}

// TableName returns the db table name for gorm
func (j *Journal) TableName() string {
	return "journals"
}

var journalsMutex sync.Mutex
var journalProviders = map[string]journalstorage.StoreProvider{}

func (j *Journal) storeProviderFactory() journalstorage.StoreProvider {
	if j.Provider == nil {
		common.Log.Warning("failed to initialize journal provider; no provider defined")
		return nil
	}

	switch *j.Provider {
	case journalstorage.StoreProviderDenseMerkleTree:
		return journalstorage.InitDenseMerkleTreeStoreProvider(j.ID)
	default:
		common.Log.Warningf("failed to initialize journal provider; unknown provider: %s", *j.Provider)
	}

	return nil
}

// resolveJournal resolves or lazily creates the journal record for the
// given kind; callers hold journalsMutex
func resolveJournal(kind string) (*Journal, error) {
	db := dbconf.DatabaseConnection()

	journal := &Journal{}
	db.Where("kind = ?", kind).Find(&journal)
	if journal != nil && journal.Kind != nil {
		return journal, nil
	}

	journal = &Journal{
		Kind:     common.StringOrNil(kind),
		Provider: common.StringOrNil(journalstorage.StoreProviderDenseMerkleTree),
	}

	result := db.Create(&journal)
	errors := result.GetErrors()
	if len(errors) > 0 {
		return nil, fmt.Errorf("failed to initialize %s journal; %s", kind, errors[0].Error())
	}

	common.Log.Debugf("initialized %s journal: %s", kind, journal.ID)
	return journal, nil
}

// resolveProvider resolves the cached provider instance for the given
// journal; callers hold journalsMutex
func resolveProvider(journal *Journal) (journalstorage.StoreProvider, error) {
	if provider, providerOk := journalProviders[*journal.Kind]; providerOk {
		return provider, nil
	}

	provider := journal.storeProviderFactory()
	if provider == nil {
		return nil, fmt.Errorf("failed to initialize provider for %s journal", *journal.Kind)
	}

	journalProviders[*journal.Kind] = provider
	return provider, nil
}

// Append commits a canonical transition digest to the journal for the given
// record kind and returns the new root
func Append(kind string, digest []byte) ([]byte, error) {
	journalsMutex.Lock()
	defer journalsMutex.Unlock()

	journal, err := resolveJournal(kind)
	if err != nil {
		return nil, err
	}

	provider, err := resolveProvider(journal)
	if err != nil {
		return nil, err
	}

	root, err := provider.Insert(digest)
	if err != nil {
		return nil, err
	}

	journal.Root, err = provider.Root()
	if err != nil {
		return nil, err
	}

	db := dbconf.DatabaseConnection()
	result := db.Save(&journal)
	errors := result.GetErrors()
	if len(errors) > 0 {
		return nil, fmt.Errorf("failed to persist root for %s journal; %s", kind, errors[0].Error())
	}

	return root, nil
}

// Root returns the hex-encoded root committing to the current journal state
// for the given record kind
func Root(kind string) (*string, error) {
	journalsMutex.Lock()
	defer journalsMutex.Unlock()

	journal, err := resolveJournal(kind)
	if err != nil {
		return nil, err
	}

	provider, err := resolveProvider(journal)
	if err != nil {
		return nil, err
	}

	return provider.Root()
}

// Height returns the number of committed transitions for the given record kind
func Height(kind string) (int, error) {
	journalsMutex.Lock()
	defer journalsMutex.Unlock()

	journal, err := resolveJournal(kind)
	if err != nil {
		return 0, err
	}

	provider, err := resolveProvider(journal)
	if err != nil {
		return 0, err
	}

	return provider.Height(), nil
}

// Contains returns true if the given digest is committed to by the journal
// for the given record kind
func Contains(kind string, digest []byte) (bool, error) {
	journalsMutex.Lock()
	defer journalsMutex.Unlock()

	journal, err := resolveJournal(kind)
	if err != nil {
		return false, err
	}

	provider, err := resolveProvider(journal)
	if err != nil {
		return false, err
	}

	return provider.Contains(digest), nil
}

// StateAt recomputes the journal state for the given record kind as of the
// given epoch
func StateAt(kind string, epoch uint64) (*state.State, error) {
	journalsMutex.Lock()
	defer journalsMutex.Unlock()

	journal, err := resolveJournal(kind)
	if err != nil {
		return nil, err
	}

	provider, err := resolveProvider(journal)
	if err != nil {
		return nil, err
	}

	return provider.StateAt(epoch)
}
