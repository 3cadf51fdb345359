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

package session

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	provide "github.com/provideplatform/provide-go/api"

	"github.com/councilnet/council/common"
	"github.com/councilnet/council/sortition"
	"github.com/councilnet/council/store"
)

const maxSessionIDSize = 32
const maxAgentIDSize = 32
const maxRequiredAgents = 10

const sessionStatusInitialized = "initialized"
const sessionStatusVRFRequested = "vrf_requested"
const sessionStatusVRFFulfilled = "vrf_fulfilled"
const sessionStatusAgentsSelected = "agents_selected"
const sessionStatusCompleted = "completed"

// storeKindSession identifies the transition journal for session records
const storeKindSession = "session"

// sessionStatusOrdinals fixes the wire values used for canonical hashing
var sessionStatusOrdinals = map[string]uint8{
	sessionStatusInitialized:    0,
	sessionStatusVRFRequested:   1,
	sessionStatusVRFFulfilled:   2,
	sessionStatusAgentsSelected: 3,
	sessionStatusCompleted:      4,
}

// CouncilSession model; one council-selection round committed to the record
// keyed by ("session", session_id). Status only ever advances along
// initialized -> vrf_requested -> vrf_fulfilled -> agents_selected -> completed.
type CouncilSession struct {
	provide.Model

	SessionID *string `sql:"not null" json:"session_id"`
	Authority *string `sql:"not null" json:"authority"`

	RequiredAgents    uint8 `json:"required_agents"`
	DiversityRequired bool  `json:"diversity_required"`

	VRFSeed      uint64 `gorm:"column:vrf_seed" json:"vrf_seed"`
	VRFFulfilled bool   `gorm:"column:vrf_fulfilled" json:"vrf_fulfilled"`
	RandomNumber uint64 `json:"random_number"`
	VRFProof     []byte `gorm:"column:vrf_proof" json:"vrf_proof,omitempty"`

	SelectedAgents     []string `sql:"-" json:"selected_agents"`
	SelectedAgentsJSON []byte   `gorm:"column:selected_agents" json:"-"`

	Timestamp          int64 `json:"timestamp"`
	SelectionTimestamp int64 `json:"selection_timestamp"`

	Status *string `sql:"not null;default:'initialized'" json:"status"`
}

// TableName returns the db table name for gorm
func (s *CouncilSession) TableName() string {
	return "sessions"
}

// Find resolves a session record by its bounded identifier
func Find(sessionID string) *CouncilSession {
	db := dbconf.DatabaseConnection()
	session := &CouncilSession{}
	db.Where("session_id = ?", sessionID).Find(&session)
	if session == nil || session.SessionID == nil {
		return nil
	}
	session.unmarshalAgents()
	return session
}

// Create materializes the session record with status initialized; the caller
// principal becomes the immutable authority
func (s *CouncilSession) Create() bool {
	if !s.validate() {
		return false
	}

	db := dbconf.DatabaseConnection()

	if existing := Find(*s.SessionID); existing != nil {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil((&common.CodedError{
				Code:    common.ErrAlreadyExists,
				Message: "session id already exists",
			}).Error()),
		})
		return false
	}

	s.Status = common.StringOrNil(sessionStatusInitialized)
	s.Timestamp = time.Now().Unix()
	s.SelectedAgents = make([]string, 0)
	s.VRFFulfilled = false
	s.marshalAgents()

	if db.NewRecord(s) {
		result := db.Create(&s)
		rowsAffected := result.RowsAffected
		errors := result.GetErrors()
		if len(errors) > 0 {
			for _, err := range errors {
				s.Errors = append(s.Errors, &provide.Error{
					Message: common.StringOrNil(err.Error()),
				})
			}
		}
		if !db.NewRecord(s) {
			success := rowsAffected > 0
			if success {
				common.Log.Debugf("initialized council session: %s", *s.SessionID)
				s.journal()
			}
			return success
		}
	}

	return false
}

// RequestVRF commits the seed before the random number is known and advances
// the record to vrf_requested; authority-gated
func (s *CouncilSession) RequestVRF(principal string, seed uint64) error {
	if s.Authority == nil || *s.Authority != principal {
		return common.NewCodedError(common.ErrUnauthorized, "caller is not the session authority")
	}

	if s.Status == nil || *s.Status != sessionStatusInitialized {
		return common.NewCodedErrorf(common.ErrInvalidSessionStatus, "cannot request VRF for session %s in status %s", *s.SessionID, *s.Status)
	}

	s.VRFSeed = seed
	s.Status = common.StringOrNil(sessionStatusVRFRequested)

	if err := s.save(dbconf.DatabaseConnection()); err != nil {
		return err
	}

	common.Log.Debugf("VRF requested for session: %s; seed: %d", *s.SessionID, seed)
	s.dispatchVRFRequest()
	return nil
}

// FulfillVRF records the random number and opaque proof; the record validator
// checks only proof non-emptiness -- full cryptographic verification belongs
// to readers, against the persisted record
func (s *CouncilSession) FulfillVRF(randomNumber uint64, proof []byte) error {
	if s.Status == nil || *s.Status != sessionStatusVRFRequested {
		return common.NewCodedErrorf(common.ErrInvalidSessionStatus, "cannot fulfill VRF for session %s in status %s", *s.SessionID, *s.Status)
	}

	if len(proof) == 0 {
		return common.NewCodedError(common.ErrInvalidVRFProof, "VRF proof required")
	}

	if len(proof) > 256 {
		return common.NewCodedErrorf(common.ErrInvalidVRFProof, "VRF proof of %d bytes exceeds bound of 256", len(proof))
	}

	s.RandomNumber = randomNumber
	s.VRFProof = proof
	s.VRFFulfilled = true
	s.Status = common.StringOrNil(sessionStatusVRFFulfilled)

	if err := s.save(dbconf.DatabaseConnection()); err != nil {
		return err
	}

	common.Log.Debugf("VRF fulfilled for session: %s; random: %d", *s.SessionID, randomNumber)
	return nil
}

// SelectAgents stores the committee; the list length must equal the required
// count and, when diversity is required, contain no duplicate ids
func (s *CouncilSession) SelectAgents(principal string, agentIDs []string) error {
	if s.Authority == nil || *s.Authority != principal {
		return common.NewCodedError(common.ErrUnauthorized, "caller is not the session authority")
	}

	if s.Status == nil || *s.Status != sessionStatusVRFFulfilled {
		return common.NewCodedErrorf(common.ErrInvalidSessionStatus, "cannot select agents for session %s in status %s", *s.SessionID, *s.Status)
	}

	if len(agentIDs) != int(s.RequiredAgents) {
		return common.NewCodedErrorf(common.ErrInvalidAgentCount, "expected %d agents; received %d", s.RequiredAgents, len(agentIDs))
	}

	for _, id := range agentIDs {
		if id == "" || len(id) > maxAgentIDSize {
			return common.NewCodedErrorf(common.ErrInvalidArgument, "invalid agent id: %s", id)
		}
	}

	if s.DiversityRequired {
		seen := map[string]struct{}{}
		for _, id := range agentIDs {
			if _, dup := seen[id]; dup {
				return common.NewCodedErrorf(common.ErrDiversityViolated, "duplicate agent id in diverse committee: %s", id)
			}
			seen[id] = struct{}{}
		}
	}

	s.SelectedAgents = agentIDs
	s.SelectionTimestamp = time.Now().Unix()
	s.Status = common.StringOrNil(sessionStatusAgentsSelected)

	if err := s.save(dbconf.DatabaseConnection()); err != nil {
		return err
	}

	common.Log.Debugf("agents selected for session: %s; count: %d", *s.SessionID, len(agentIDs))
	return nil
}

// DrawAgents performs the deterministic sortition draw over the given ordered
// candidate pool and stores the result as the committee
func (s *CouncilSession) DrawAgents(principal string, pool []string) error {
	if s.Status == nil || *s.Status != sessionStatusVRFFulfilled {
		return common.NewCodedErrorf(common.ErrInvalidSessionStatus, "cannot draw agents for session %s in status %s", *s.SessionID, *s.Status)
	}

	selected, err := sortition.Draw(s.RandomNumber, pool, int(s.RequiredAgents), s.DiversityRequired)
	if err != nil {
		return common.NewCodedError(common.ErrInvalidAgentCount, err.Error())
	}

	return s.SelectAgents(principal, selected)
}

// Complete marks the selection round terminal; authority-gated
func (s *CouncilSession) Complete(principal string) error {
	if s.Authority == nil || *s.Authority != principal {
		return common.NewCodedError(common.ErrUnauthorized, "caller is not the session authority")
	}

	if s.Status == nil || *s.Status != sessionStatusAgentsSelected {
		return common.NewCodedErrorf(common.ErrInvalidSessionStatus, "cannot complete session %s in status %s", *s.SessionID, *s.Status)
	}

	s.Status = common.StringOrNil(sessionStatusCompleted)
	return s.save(dbconf.DatabaseConnection())
}

// VerifySelection returns true iff the persisted record satisfies the
// selection invariants; pure and idempotent
func (s *CouncilSession) VerifySelection() (bool, error) {
	if s.Status == nil || (*s.Status != sessionStatusAgentsSelected && *s.Status != sessionStatusCompleted) {
		return false, common.NewCodedErrorf(common.ErrInvalidSessionStatus, "cannot verify selection for session %s in status %s", *s.SessionID, *s.Status)
	}

	valid := s.VRFFulfilled && len(s.SelectedAgents) == int(s.RequiredAgents) && len(s.VRFProof) > 0

	if valid && s.DiversityRequired {
		seen := map[string]struct{}{}
		for _, id := range s.SelectedAgents {
			if _, dup := seen[id]; dup {
				valid = false
				break
			}
			seen[id] = struct{}{}
		}
	}

	return valid, nil
}

// CanonicalDigest hashes the canonical form of the record: bounded fields
// padded to their documented max sizes, integers big-endian, statuses as
// fixed wire ordinals
func (s *CouncilSession) CanonicalDigest() []byte {
	digest := sha256.New()

	digest.Write(padded([]byte(*s.SessionID), maxSessionIDSize))
	digest.Write(padded(principalBytes(s.Authority), 32))
	digest.Write([]byte{s.RequiredAgents, boolByte(s.DiversityRequired)})

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], s.VRFSeed)
	digest.Write(buf[:])
	digest.Write([]byte{boolByte(s.VRFFulfilled)})
	binary.BigEndian.PutUint64(buf[:], s.RandomNumber)
	digest.Write(buf[:])
	digest.Write(padded(s.VRFProof, 256))

	digest.Write([]byte{uint8(len(s.SelectedAgents))})
	for i := 0; i < maxRequiredAgents; i++ {
		var agent []byte
		if i < len(s.SelectedAgents) {
			agent = []byte(s.SelectedAgents[i])
		}
		digest.Write(padded(agent, maxAgentIDSize))
	}

	binary.BigEndian.PutUint64(buf[:], uint64(s.Timestamp))
	digest.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(s.SelectionTimestamp))
	digest.Write(buf[:])

	digest.Write([]byte{sessionStatusOrdinals[*s.Status]})
	return digest.Sum(nil)
}

// save persists the mutated record and appends its canonical digest to the
// transition journal
func (s *CouncilSession) save(db *gorm.DB) error {
	s.marshalAgents()
	if !db.NewRecord(&s) {
		result := db.Save(&s)
		errors := result.GetErrors()
		if len(errors) > 0 {
			for _, err := range errors {
				s.Errors = append(s.Errors, &provide.Error{
					Message: common.StringOrNil(err.Error()),
				})
			}
			return errors[0]
		}
	}
	s.journal()
	return nil
}

// journal appends the canonical digest of the committed record state; journal
// divergence is an audit signal, not a transition failure
func (s *CouncilSession) journal() {
	if _, err := store.Append(storeKindSession, s.CanonicalDigest()); err != nil {
		common.Log.Warningf("failed to journal transition for session %s; %s", *s.SessionID, err.Error())
	}
}

func (s *CouncilSession) marshalAgents() {
	raw, _ := json.Marshal(s.SelectedAgents)
	s.SelectedAgentsJSON = raw
}

func (s *CouncilSession) unmarshalAgents() {
	s.SelectedAgents = make([]string, 0)
	if len(s.SelectedAgentsJSON) > 0 {
		json.Unmarshal(s.SelectedAgentsJSON, &s.SelectedAgents)
	}
}

// validate the session params at creation
func (s *CouncilSession) validate() bool {
	s.Errors = make([]*provide.Error, 0)

	if s.SessionID == nil || *s.SessionID == "" {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil("session id required"),
		})
	} else if len(*s.SessionID) > maxSessionIDSize {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil("session id exceeds 32 bytes"),
		})
	}

	if s.Authority == nil {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil("session authority required"),
		})
	}

	if s.RequiredAgents == 0 || s.RequiredAgents > maxRequiredAgents {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil((&common.CodedError{
				Code:    common.ErrInvalidArgument,
				Message: "required agents must be between 1 and 10",
			}).Error()),
		})
	}

	return len(s.Errors) == 0
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func padded(val []byte, size int) []byte {
	buf := make([]byte, size)
	copy(buf, val)
	return buf
}

func principalBytes(principal *string) []byte {
	if principal == nil {
		return nil
	}
	raw, _ := hex.DecodeString(*principal)
	return raw
}
