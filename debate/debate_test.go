// +build unit

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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/councilnet/council/common"
)

const testPrincipal = "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"

func testDebate(status string) *Debate {
	return &Debate{
		DebateID:  common.StringOrNil("debate-1"),
		Topic:     common.StringOrNil("adopt proposal 7"),
		Authority: common.StringOrNil(testPrincipal),
		MaxRounds: 3,
		Votes:     make([]*Vote, 0),
		Status:    common.StringOrNil(status),
	}
}

func requireCode(t *testing.T, err error, code uint32) {
	require.Error(t, err)
	coded, codedOk := err.(*common.CodedError)
	require.True(t, codedOk, "expected coded guard failure; got %s", err.Error())
	assert.Equal(t, code, coded.Code)
}

func TestTallyVotesWeightedOutcome(t *testing.T) {
	support, oppose, neutral, outcome := TallyVotes([]*Vote{
		{AgentID: "a", VoteOption: VoteOptionSupport, Confidence: 80},
		{AgentID: "b", VoteOption: VoteOptionSupport, Confidence: 40},
		{AgentID: "c", VoteOption: VoteOptionOppose, Confidence: 90},
	})

	assert.Equal(t, uint16(120), support)
	assert.Equal(t, uint16(90), oppose)
	assert.Equal(t, uint16(0), neutral)
	assert.Equal(t, VoteOptionSupport, outcome)
}

func TestTallyVotesTieResolvesNeutral(t *testing.T) {
	_, _, _, outcome := TallyVotes([]*Vote{
		{AgentID: "a", VoteOption: VoteOptionSupport, Confidence: 50},
		{AgentID: "b", VoteOption: VoteOptionOppose, Confidence: 50},
	})
	assert.Equal(t, VoteOptionNeutral, outcome)
}

func TestTallyVotesAbstainNeverWins(t *testing.T) {
	support, oppose, neutral, outcome := TallyVotes([]*Vote{
		{AgentID: "a", VoteOption: VoteOptionAbstain, Confidence: 100},
		{AgentID: "b", VoteOption: VoteOptionOppose, Confidence: 1},
	})

	assert.Equal(t, uint16(0), support)
	assert.Equal(t, uint16(1), oppose)
	assert.Equal(t, uint16(0), neutral)
	assert.Equal(t, VoteOptionOppose, outcome)
}

func TestTallyVotesClampsScores(t *testing.T) {
	// the pure reduction does not enforce ballot capacity, only
	// transitions do; 700 ballots at full confidence overflow the u16
	// accumulator range and must clamp
	votes := make([]*Vote, 0, 700)
	for i := 0; i < 700; i++ {
		votes = append(votes, &Vote{
			AgentID:    fmt.Sprintf("agent-%d", i),
			VoteOption: VoteOptionSupport,
			Confidence: 100,
		})
	}

	support, oppose, neutral, outcome := TallyVotes(votes)
	assert.Equal(t, uint16(maxScore), support)
	assert.Equal(t, uint16(0), oppose)
	assert.Equal(t, uint16(0), neutral)
	assert.Equal(t, VoteOptionSupport, outcome)
}

func TestCastVoteRequiresActiveDebate(t *testing.T) {
	for _, status := range []string{debateStatusCompleted, debateStatusClosed} {
		debate := testDebate(status)
		err := debate.CastVote("a", VoteOptionSupport, 50, "")
		requireCode(t, err, common.ErrDebateNotActive)
	}
}

func TestCastVoteRejectsExcessiveConfidence(t *testing.T) {
	debate := testDebate(debateStatusActive)
	err := debate.CastVote("a", VoteOptionSupport, 101, "")
	requireCode(t, err, common.ErrInvalidConfidence)
}

func TestCastVoteRejectsInvalidOption(t *testing.T) {
	debate := testDebate(debateStatusActive)
	err := debate.CastVote("a", VoteOption(4), 50, "")
	requireCode(t, err, common.ErrInvalidArgument)
}

func TestCastVoteRejectsDoubleVote(t *testing.T) {
	debate := testDebate(debateStatusActive)
	debate.Votes = append(debate.Votes, &Vote{AgentID: "a", VoteOption: VoteOptionSupport, Confidence: 50})

	err := debate.CastVote("a", VoteOptionOppose, 60, "")
	requireCode(t, err, common.ErrAlreadyVoted)
	assert.Len(t, debate.Votes, 1)
}

func TestCastVoteRejectsBeyondCapacity(t *testing.T) {
	debate := testDebate(debateStatusActive)
	for i := 0; i < maxVotes; i++ {
		debate.Votes = append(debate.Votes, &Vote{
			AgentID:    fmt.Sprintf("agent-%d", i),
			VoteOption: VoteOptionSupport,
			Confidence: 50,
		})
	}

	err := debate.CastVote("one-too-many", VoteOptionSupport, 50, "")
	requireCode(t, err, common.ErrCapacityExceeded)
}

func TestCastVoteRejectsOversizedReasoning(t *testing.T) {
	debate := testDebate(debateStatusActive)
	reasoning := make([]byte, maxReasoningSize+1)
	for i := range reasoning {
		reasoning[i] = 'r'
	}
	err := debate.CastVote("a", VoteOptionSupport, 50, string(reasoning))
	requireCode(t, err, common.ErrInvalidArgument)
}

func TestTallyRequiresAuthority(t *testing.T) {
	debate := testDebate(debateStatusActive)
	debate.Votes = append(debate.Votes, &Vote{AgentID: "a", VoteOption: VoteOptionSupport, Confidence: 50})

	err := debate.Tally("someone-else")
	requireCode(t, err, common.ErrUnauthorized)
	assert.False(t, debate.VotesTallied)
}

func TestTallyRequiresVotes(t *testing.T) {
	debate := testDebate(debateStatusActive)
	err := debate.Tally(testPrincipal)
	requireCode(t, err, common.ErrNoVotes)
}

func TestTallyRequiresActiveDebate(t *testing.T) {
	debate := testDebate(debateStatusClosed)
	debate.Votes = append(debate.Votes, &Vote{AgentID: "a", VoteOption: VoteOptionSupport, Confidence: 50})

	err := debate.Tally(testPrincipal)
	requireCode(t, err, common.ErrDebateNotActive)
}

func TestResultsGuardedUntilTallied(t *testing.T) {
	debate := testDebate(debateStatusActive)
	_, err := debate.Results()
	requireCode(t, err, common.ErrVotesNotTallied)
}

func TestResultsAfterTally(t *testing.T) {
	outcome := VoteOptionSupport
	debate := testDebate(debateStatusCompleted)
	debate.Votes = []*Vote{
		{AgentID: "a", VoteOption: VoteOptionSupport, Confidence: 80},
		{AgentID: "b", VoteOption: VoteOptionOppose, Confidence: 30},
	}
	debate.Outcome = &outcome
	debate.SupportScore = 80
	debate.OpposeScore = 30
	debate.VotesTallied = true

	results, err := debate.Results()
	require.NoError(t, err)
	assert.Equal(t, VoteOptionSupport, results.Outcome)
	assert.Equal(t, uint16(80), results.SupportScore)
	assert.Equal(t, uint16(30), results.OpposeScore)
	assert.Equal(t, uint16(2), results.TotalVotes)
}

func TestCloseRequiresAuthority(t *testing.T) {
	debate := testDebate(debateStatusActive)
	err := debate.Close("someone-else")
	requireCode(t, err, common.ErrUnauthorized)
}

func TestCloseIdempotentOnceClosed(t *testing.T) {
	debate := testDebate(debateStatusClosed)
	require.NoError(t, debate.Close(testPrincipal))
	assert.Equal(t, debateStatusClosed, *debate.Status)
}

func TestCloseRejectedAfterCompletion(t *testing.T) {
	debate := testDebate(debateStatusCompleted)
	err := debate.Close(testPrincipal)
	requireCode(t, err, common.ErrDebateNotActive)
}

func TestAdvanceRoundExhaustsMaxRounds(t *testing.T) {
	debate := testDebate(debateStatusActive)
	debate.CurrentRound = debate.MaxRounds

	err := debate.AdvanceRound(testPrincipal)
	requireCode(t, err, common.ErrInvalidArgument)
}

func TestCanonicalDigestDeterministic(t *testing.T) {
	debate := testDebate(debateStatusActive)
	debate.Votes = []*Vote{
		{AgentID: "a", VoteOption: VoteOptionSupport, Confidence: 80, Timestamp: 1700000000},
	}
	debate.Timestamp = 1700000000

	digest := debate.CanonicalDigest()
	require.Len(t, digest, 32)
	assert.Equal(t, digest, debate.CanonicalDigest())
}

func TestCanonicalDigestSensitiveToBallots(t *testing.T) {
	debate := testDebate(debateStatusActive)
	baseline := debate.CanonicalDigest()

	debate.Votes = []*Vote{
		{AgentID: "a", VoteOption: VoteOptionSupport, Confidence: 80},
	}
	assert.NotEqual(t, baseline, debate.CanonicalDigest())
}

func TestValidateRejectsOversizedTopic(t *testing.T) {
	oversized := make([]byte, maxTopicSize+1)
	for i := range oversized {
		oversized[i] = 't'
	}

	debate := testDebate(debateStatusActive)
	debate.Topic = common.StringOrNil(string(oversized))
	assert.False(t, debate.validate())
	require.NotEmpty(t, debate.Errors)
}
