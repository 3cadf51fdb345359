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

// Package audit recomputes selection and voting outcomes from persisted
// records so any third party holding the records and the fulfiller's
// verification key can check them without trusting the service.
package audit

import (
	"github.com/councilnet/council/debate"
	"github.com/councilnet/council/session"
	"github.com/councilnet/council/sortition"
	vrf "github.com/councilnet/council/vrf/providers"
)

// Check is a single named verification with its result
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Report aggregates the checks run against one record
type Report struct {
	RecordID string   `json:"record_id"`
	Valid    bool     `json:"valid"`
	Checks   []*Check `json:"checks"`
}

func (r *Report) append(name string, passed bool, detail string) {
	r.Checks = append(r.Checks, &Check{
		Name:   name,
		Passed: passed,
		Detail: detail,
	})
	if !passed {
		r.Valid = false
	}
}

// VerifySession re-derives the committee from the persisted session record:
// the VRF proof is verified against the given verification key, the
// sortition draw is recomputed over the given candidate pool, and the stored
// committee must match the recomputation exactly. A nil pool skips the draw
// recomputation; a nil verification key skips proof verification.
func VerifySession(record *session.CouncilSession, pool []string, verificationKey []byte) *Report {
	report := &Report{
		RecordID: *record.SessionID,
		Valid:    true,
		Checks:   make([]*Check, 0),
	}

	report.append("vrf_fulfilled", record.VRFFulfilled, "")

	if verificationKey != nil {
		provider := vrf.InitEdDSAVRFVerifier(verificationKey)
		if provider == nil {
			report.append("vrf_proof", false, "failed to parse verification key")
		} else {
			verified, err := provider.Verify(*record.SessionID, record.VRFSeed, record.RandomNumber, record.VRFProof)
			detail := ""
			if err != nil {
				detail = err.Error()
			}
			report.append("vrf_proof", verified && err == nil, detail)
		}
	}

	report.append("committee_size", len(record.SelectedAgents) == int(record.RequiredAgents), "")

	if record.DiversityRequired {
		seen := map[string]struct{}{}
		distinct := true
		for _, id := range record.SelectedAgents {
			if _, dup := seen[id]; dup {
				distinct = false
				break
			}
			seen[id] = struct{}{}
		}
		report.append("committee_distinct", distinct, "")
	}

	if pool != nil {
		drawn, err := sortition.Draw(record.RandomNumber, pool, int(record.RequiredAgents), record.DiversityRequired)
		if err != nil {
			report.append("sortition_draw", false, err.Error())
		} else {
			report.append("sortition_draw", equalCommittees(drawn, record.SelectedAgents), "")
		}
	}

	return report
}

// VerifyDebate recomputes the tally from the persisted ballots and checks
// the stored scores and outcome against the recomputation
func VerifyDebate(record *debate.Debate) *Report {
	report := &Report{
		RecordID: *record.DebateID,
		Valid:    true,
		Checks:   make([]*Check, 0),
	}

	confidenceOk := true
	unique := true
	seen := map[string]struct{}{}
	for _, vote := range record.Votes {
		if vote.Confidence > debate.MaxConfidence {
			confidenceOk = false
		}
		if _, dup := seen[vote.AgentID]; dup {
			unique = false
		}
		seen[vote.AgentID] = struct{}{}
	}
	report.append("ballot_confidence", confidenceOk, "")
	report.append("ballot_unique", unique, "")

	report.append("votes_tallied", record.VotesTallied, "")
	if !record.VotesTallied {
		return report
	}

	support, oppose, neutral, outcome := debate.TallyVotes(record.Votes)

	report.append("support_score", support == record.SupportScore, "")
	report.append("oppose_score", oppose == record.OpposeScore, "")
	report.append("neutral_score", neutral == record.NeutralScore, "")
	report.append("outcome", record.Outcome != nil && outcome == *record.Outcome, "")

	return report
}

func equalCommittees(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
