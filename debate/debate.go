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

package debate

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
	"github.com/councilnet/council/store"
)

const maxDebateIDSize = 32
const maxTopicSize = 128
const maxAgentIDSize = 32
const maxReasoningSize = 128
const maxVotes = 20
// MaxConfidence is the inclusive upper bound on a ballot confidence weight
const MaxConfidence = 100
const maxScore = 65535

const debateStatusActive = "active"
const debateStatusCompleted = "completed"
const debateStatusClosed = "closed"

// storeKindDebate identifies the transition journal for debate records
const storeKindDebate = "debate"

// debateStatusOrdinals fixes the wire values used for canonical hashing
var debateStatusOrdinals = map[string]uint8{
	debateStatusActive:    0,
	debateStatusCompleted: 1,
	debateStatusClosed:    2,
}

// VoteOption wire values are fixed: Support=0, Oppose=1, Neutral=2, Abstain=3
type VoteOption uint8

const (
	VoteOptionSupport VoteOption = iota
	VoteOptionOppose
	VoteOptionNeutral
	VoteOptionAbstain
)

// Valid returns true for the four declared wire values
func (o VoteOption) Valid() bool {
	return o <= VoteOptionAbstain
}

// String returns the canonical name of the option
func (o VoteOption) String() string {
	switch o {
	case VoteOptionSupport:
		return "support"
	case VoteOptionOppose:
		return "oppose"
	case VoteOptionNeutral:
		return "neutral"
	case VoteOptionAbstain:
		return "abstain"
	}
	return "unknown"
}

// Vote is a single agent's recorded position on the debate topic
type Vote struct {
	AgentID    string     `json:"agent_id"`
	VoteOption VoteOption `json:"vote_option"`
	Confidence uint8      `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	Timestamp  int64      `json:"timestamp"`
}

// VoteResults is the read-only tally summary returned once votes_tallied
type VoteResults struct {
	DebateID     string     `json:"debate_id"`
	Outcome      VoteOption `json:"outcome"`
	SupportScore uint16     `json:"support_score"`
	OpposeScore  uint16     `json:"oppose_score"`
	NeutralScore uint16     `json:"neutral_score"`
	TotalVotes   uint16     `json:"total_votes"`
}

// Debate model; one confidence-weighted ballot round committed to the record
// keyed by ("debate", debate_id). Completed and closed are terminal.
type Debate struct {
	provide.Model

	DebateID  *string `sql:"not null" json:"debate_id"`
	Topic     *string `sql:"not null" json:"topic"`
	Authority *string `sql:"not null" json:"authority"`

	MaxRounds    uint8 `json:"max_rounds"`
	CurrentRound uint8 `json:"current_round"`

	Votes     []*Vote `sql:"-" json:"votes"`
	VotesJSON []byte  `gorm:"column:votes" json:"-"`

	Outcome      *VoteOption `json:"outcome,omitempty"`
	SupportScore uint16      `json:"support_score"`
	OpposeScore  uint16      `json:"oppose_score"`
	NeutralScore uint16      `json:"neutral_score"`
	VotesTallied bool        `json:"votes_tallied"`

	Timestamp           int64 `json:"timestamp"`
	CompletionTimestamp int64 `json:"completion_timestamp"`

	Status *string `sql:"not null;default:'active'" json:"status"`
}

// TableName returns the db table name for gorm
func (d *Debate) TableName() string {
	return "debates"
}

// Find resolves a debate record by its bounded identifier
func Find(debateID string) *Debate {
	db := dbconf.DatabaseConnection()
	debate := &Debate{}
	db.Where("debate_id = ?", debateID).Find(&debate)
	if debate == nil || debate.DebateID == nil {
		return nil
	}
	debate.unmarshalVotes()
	return debate
}

// Create materializes the debate record with status active; the caller
// principal becomes the immutable authority
func (d *Debate) Create() bool {
	if !d.validate() {
		return false
	}

	db := dbconf.DatabaseConnection()

	if existing := Find(*d.DebateID); existing != nil {
		d.Errors = append(d.Errors, &provide.Error{
			Message: common.StringOrNil((&common.CodedError{
				Code:    common.ErrAlreadyExists,
				Message: "debate id already exists",
			}).Error()),
		})
		return false
	}

	d.Status = common.StringOrNil(debateStatusActive)
	d.Timestamp = time.Now().Unix()
	d.CurrentRound = 0
	d.Votes = make([]*Vote, 0)
	d.VotesTallied = false
	d.marshalVotes()

	if db.NewRecord(d) {
		result := db.Create(&d)
		rowsAffected := result.RowsAffected
		errors := result.GetErrors()
		if len(errors) > 0 {
			for _, err := range errors {
				d.Errors = append(d.Errors, &provide.Error{
					Message: common.StringOrNil(err.Error()),
				})
			}
		}
		if !db.NewRecord(d) {
			success := rowsAffected > 0
			if success {
				common.Log.Debugf("initialized debate: %s", *d.DebateID)
				d.journal()
			}
			return success
		}
	}

	return false
}

// CastVote appends a ballot; the ballot sequence only grows while the
// debate is active
func (d *Debate) CastVote(agentID string, option VoteOption, confidence uint8, reasoning string) error {
	if d.Status == nil || *d.Status != debateStatusActive {
		return common.NewCodedErrorf(common.ErrDebateNotActive, "debate %s is not active", *d.DebateID)
	}

	if confidence > MaxConfidence {
		return common.NewCodedErrorf(common.ErrInvalidConfidence, "confidence %d exceeds 100", confidence)
	}

	if !option.Valid() {
		return common.NewCodedErrorf(common.ErrInvalidArgument, "invalid vote option: %d", option)
	}

	if agentID == "" || len(agentID) > maxAgentIDSize {
		return common.NewCodedErrorf(common.ErrInvalidArgument, "invalid agent id: %s", agentID)
	}

	if len(reasoning) > maxReasoningSize {
		return common.NewCodedErrorf(common.ErrInvalidArgument, "reasoning exceeds %d bytes", maxReasoningSize)
	}

	for _, vote := range d.Votes {
		if vote.AgentID == agentID {
			return common.NewCodedErrorf(common.ErrAlreadyVoted, "agent %s has already voted", agentID)
		}
	}

	if len(d.Votes) >= maxVotes {
		return common.NewCodedErrorf(common.ErrCapacityExceeded, "debate %s has reached the ballot capacity of %d", *d.DebateID, maxVotes)
	}

	d.Votes = append(d.Votes, &Vote{
		AgentID:    agentID,
		VoteOption: option,
		Confidence: confidence,
		Reasoning:  reasoning,
		Timestamp:  time.Now().Unix(),
	})

	if err := d.save(dbconf.DatabaseConnection()); err != nil {
		return err
	}

	common.Log.Debugf("vote cast by agent: %s; option: %s; confidence: %d", agentID, option, confidence)
	return nil
}

// Tally reduces the ballot sequence to per-option scores and a single
// outcome. Accumulation is integer-only so the result is bit-identical on
// every replica: each option accumulates the raw confidences of its ballots,
// clamped to the u16 range. Strict maximum wins; any tie at the top resolves
// to neutral; abstentions contribute nothing and can never win.
func (d *Debate) Tally(principal string) error {
	if d.Authority == nil || *d.Authority != principal {
		return common.NewCodedError(common.ErrUnauthorized, "caller is not the debate authority")
	}

	if d.Status == nil || *d.Status != debateStatusActive {
		return common.NewCodedErrorf(common.ErrDebateNotActive, "debate %s is not active", *d.DebateID)
	}

	if len(d.Votes) == 0 {
		return common.NewCodedErrorf(common.ErrNoVotes, "no votes recorded for debate %s", *d.DebateID)
	}

	support, oppose, neutral, outcome := TallyVotes(d.Votes)

	d.SupportScore = support
	d.OpposeScore = oppose
	d.NeutralScore = neutral
	d.Outcome = &outcome
	d.VotesTallied = true
	d.Status = common.StringOrNil(debateStatusCompleted)
	d.CompletionTimestamp = time.Now().Unix()

	if err := d.save(dbconf.DatabaseConnection()); err != nil {
		return err
	}

	common.Log.Debugf("votes tallied for debate %s; support: %d; oppose: %d; neutral: %d; outcome: %s", *d.DebateID, support, oppose, neutral, outcome)
	d.dispatchNotification(notificationDebateTallied)
	return nil
}

// TallyVotes is the pure reduction shared with read-side verification
func TallyVotes(votes []*Vote) (support, oppose, neutral uint16, outcome VoteOption) {
	var supportAcc, opposeAcc, neutralAcc uint64

	for _, vote := range votes {
		switch vote.VoteOption {
		case VoteOptionSupport:
			supportAcc += uint64(vote.Confidence)
		case VoteOptionOppose:
			opposeAcc += uint64(vote.Confidence)
		case VoteOptionNeutral:
			neutralAcc += uint64(vote.Confidence)
		case VoteOptionAbstain:
		}
	}

	support = clampScore(supportAcc)
	oppose = clampScore(opposeAcc)
	neutral = clampScore(neutralAcc)

	outcome = VoteOptionNeutral
	if supportAcc > opposeAcc && supportAcc > neutralAcc {
		outcome = VoteOptionSupport
	} else if opposeAcc > supportAcc && opposeAcc > neutralAcc {
		outcome = VoteOptionOppose
	}

	return support, oppose, neutral, outcome
}

func clampScore(acc uint64) uint16 {
	if acc > maxScore {
		return maxScore
	}
	return uint16(acc)
}

// Close is the authority-issued emergency stop; permitted from any
// non-terminal state, idempotent on an already-closed record, and discards
// any accumulated ballots without tallying
func (d *Debate) Close(principal string) error {
	if d.Authority == nil || *d.Authority != principal {
		return common.NewCodedError(common.ErrUnauthorized, "caller is not the debate authority")
	}

	if d.Status != nil && *d.Status == debateStatusClosed {
		return nil
	}

	if d.Status != nil && *d.Status == debateStatusCompleted {
		return common.NewCodedErrorf(common.ErrDebateNotActive, "debate %s has already completed", *d.DebateID)
	}

	d.Status = common.StringOrNil(debateStatusClosed)

	if err := d.save(dbconf.DatabaseConnection()); err != nil {
		return err
	}

	common.Log.Debugf("debate closed: %s", *d.DebateID)
	d.dispatchNotification(notificationDebateClosed)
	return nil
}

// AdvanceRound increments the round counter while the debate is active
func (d *Debate) AdvanceRound(principal string) error {
	if d.Authority == nil || *d.Authority != principal {
		return common.NewCodedError(common.ErrUnauthorized, "caller is not the debate authority")
	}

	if d.Status == nil || *d.Status != debateStatusActive {
		return common.NewCodedErrorf(common.ErrDebateNotActive, "debate %s is not active", *d.DebateID)
	}

	if d.CurrentRound >= d.MaxRounds {
		return common.NewCodedErrorf(common.ErrInvalidArgument, "debate %s has exhausted its %d rounds", *d.DebateID, d.MaxRounds)
	}

	d.CurrentRound++
	return d.save(dbconf.DatabaseConnection())
}

// Results returns the tally summary; guarded so an untallied outcome can
// never be read
func (d *Debate) Results() (*VoteResults, error) {
	if !d.VotesTallied || d.Outcome == nil {
		return nil, common.NewCodedErrorf(common.ErrVotesNotTallied, "votes not yet tallied for debate %s", *d.DebateID)
	}

	return &VoteResults{
		DebateID:     *d.DebateID,
		Outcome:      *d.Outcome,
		SupportScore: d.SupportScore,
		OpposeScore:  d.OpposeScore,
		NeutralScore: d.NeutralScore,
		TotalVotes:   uint16(len(d.Votes)),
	}, nil
}

// CanonicalDigest hashes the canonical form of the record: bounded fields
// padded to their documented max sizes, integers big-endian, statuses and
// options as fixed wire ordinals
func (d *Debate) CanonicalDigest() []byte {
	digest := sha256.New()

	digest.Write(padded([]byte(*d.DebateID), maxDebateIDSize))
	digest.Write(padded([]byte(*d.Topic), maxTopicSize))
	digest.Write(padded(principalBytes(d.Authority), 32))
	digest.Write([]byte{d.MaxRounds, d.CurrentRound})

	digest.Write([]byte{uint8(len(d.Votes))})
	for i := 0; i < maxVotes; i++ {
		if i < len(d.Votes) {
			vote := d.Votes[i]
			digest.Write(padded([]byte(vote.AgentID), maxAgentIDSize))
			digest.Write([]byte{uint8(vote.VoteOption), vote.Confidence})
			digest.Write(padded([]byte(vote.Reasoning), maxReasoningSize))
			var ts [8]byte
			binary.BigEndian.PutUint64(ts[:], uint64(vote.Timestamp))
			digest.Write(ts[:])
		} else {
			digest.Write(padded(nil, maxAgentIDSize+2+maxReasoningSize+8))
		}
	}

	outcome := uint8(0xff)
	if d.Outcome != nil {
		outcome = uint8(*d.Outcome)
	}
	digest.Write([]byte{outcome})

	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], d.SupportScore)
	digest.Write(buf[:])
	binary.BigEndian.PutUint16(buf[:], d.OpposeScore)
	digest.Write(buf[:])
	binary.BigEndian.PutUint16(buf[:], d.NeutralScore)
	digest.Write(buf[:])

	digest.Write([]byte{boolByte(d.VotesTallied)})

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(d.Timestamp))
	digest.Write(ts[:])
	binary.BigEndian.PutUint64(ts[:], uint64(d.CompletionTimestamp))
	digest.Write(ts[:])

	digest.Write([]byte{debateStatusOrdinals[*d.Status]})
	return digest.Sum(nil)
}

// save persists the mutated record and appends its canonical digest to the
// transition journal
func (d *Debate) save(db *gorm.DB) error {
	d.marshalVotes()
	if !db.NewRecord(&d) {
		result := db.Save(&d)
		errors := result.GetErrors()
		if len(errors) > 0 {
			for _, err := range errors {
				d.Errors = append(d.Errors, &provide.Error{
					Message: common.StringOrNil(err.Error()),
				})
			}
			return errors[0]
		}
	}
	d.journal()
	return nil
}

func (d *Debate) journal() {
	if _, err := store.Append(storeKindDebate, d.CanonicalDigest()); err != nil {
		common.Log.Warningf("failed to journal transition for debate %s; %s", *d.DebateID, err.Error())
	}
}

func (d *Debate) marshalVotes() {
	raw, _ := json.Marshal(d.Votes)
	d.VotesJSON = raw
}

func (d *Debate) unmarshalVotes() {
	d.Votes = make([]*Vote, 0)
	if len(d.VotesJSON) > 0 {
		json.Unmarshal(d.VotesJSON, &d.Votes)
	}
}

// validate the debate params at creation
func (d *Debate) validate() bool {
	d.Errors = make([]*provide.Error, 0)

	if d.DebateID == nil || *d.DebateID == "" {
		d.Errors = append(d.Errors, &provide.Error{
			Message: common.StringOrNil("debate id required"),
		})
	} else if len(*d.DebateID) > maxDebateIDSize {
		d.Errors = append(d.Errors, &provide.Error{
			Message: common.StringOrNil("debate id exceeds 32 bytes"),
		})
	}

	if d.Topic == nil || *d.Topic == "" {
		d.Errors = append(d.Errors, &provide.Error{
			Message: common.StringOrNil("debate topic required"),
		})
	} else if len(*d.Topic) > maxTopicSize {
		d.Errors = append(d.Errors, &provide.Error{
			Message: common.StringOrNil("debate topic exceeds 128 bytes"),
		})
	}

	if d.Authority == nil {
		d.Errors = append(d.Errors, &provide.Error{
			Message: common.StringOrNil("debate authority required"),
		})
	}

	if d.MaxRounds == 0 {
		d.Errors = append(d.Errors, &provide.Error{
			Message: common.StringOrNil("max rounds must be at least 1"),
		})
	}

	return len(d.Errors) == 0
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
