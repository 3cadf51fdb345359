// +build integration

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
	"fmt"
	"testing"

	uuid "github.com/kthomas/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/councilnet/council/common"
	vrf "github.com/councilnet/council/vrf/providers"
)

func newSessionID(t *testing.T) string {
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return fmt.Sprintf("s-%s", id.String()[0:24])
}

func TestSessionSelectionLifecycle(t *testing.T) {
	principal := common.Principal("integration-tester")

	session := &CouncilSession{
		SessionID:         common.StringOrNil(newSessionID(t)),
		Authority:         common.StringOrNil(principal),
		RequiredAgents:    3,
		DiversityRequired: true,
	}
	require.True(t, session.Create(), "failed to create session; %v", session.Errors)
	assert.Equal(t, sessionStatusInitialized, *session.Status)

	require.NoError(t, session.RequestVRF(principal, 42))
	assert.Equal(t, sessionStatusVRFRequested, *session.Status)
	assert.Equal(t, uint64(42), session.VRFSeed)

	provider := vrf.InitEdDSAVRFProvider(nil)
	require.NotNil(t, provider)

	fulfillment, err := provider.Fulfill(*session.SessionID, session.VRFSeed)
	require.NoError(t, err)
	require.NoError(t, session.FulfillVRF(fulfillment.RandomNumber, fulfillment.Proof))
	assert.Equal(t, sessionStatusVRFFulfilled, *session.Status)
	assert.True(t, session.VRFFulfilled)

	pool := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	require.NoError(t, session.DrawAgents(principal, pool))
	assert.Equal(t, sessionStatusAgentsSelected, *session.Status)
	assert.Len(t, session.SelectedAgents, 3)

	valid, err := session.VerifySelection()
	require.NoError(t, err)
	assert.True(t, valid)

	require.NoError(t, session.Complete(principal))
	assert.Equal(t, sessionStatusCompleted, *session.Status)

	persisted := Find(*session.SessionID)
	require.NotNil(t, persisted)
	assert.Equal(t, sessionStatusCompleted, *persisted.Status)
	assert.Equal(t, session.SelectedAgents, persisted.SelectedAgents)
	assert.Equal(t, session.RandomNumber, persisted.RandomNumber)
}

func TestSessionManualSelectionLifecycle(t *testing.T) {
	principal := common.Principal("integration-tester")

	session := &CouncilSession{
		SessionID:      common.StringOrNil(newSessionID(t)),
		Authority:      common.StringOrNil(principal),
		RequiredAgents: 2,
	}
	require.True(t, session.Create(), "failed to create session; %v", session.Errors)

	require.NoError(t, session.RequestVRF(principal, 7))
	require.NoError(t, session.FulfillVRF(98765, []byte{0x01, 0x02, 0x03}))

	require.NoError(t, session.SelectAgents(principal, []string{"alpha", "bravo"}))
	assert.Equal(t, sessionStatusAgentsSelected, *session.Status)

	persisted := Find(*session.SessionID)
	require.NotNil(t, persisted)
	assert.Equal(t, []string{"alpha", "bravo"}, persisted.SelectedAgents)
}

func TestSessionDuplicateIDRejected(t *testing.T) {
	principal := common.Principal("integration-tester")
	sessionID := newSessionID(t)

	session := &CouncilSession{
		SessionID:      common.StringOrNil(sessionID),
		Authority:      common.StringOrNil(principal),
		RequiredAgents: 3,
	}
	require.True(t, session.Create(), "failed to create session; %v", session.Errors)

	duplicate := &CouncilSession{
		SessionID:      common.StringOrNil(sessionID),
		Authority:      common.StringOrNil(principal),
		RequiredAgents: 3,
	}
	assert.False(t, duplicate.Create())
	require.NotEmpty(t, duplicate.Errors)
}
