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
	"encoding/json"
	"fmt"
	"sync"
	"time"

	natsutil "github.com/kthomas/go-natsutil"
	redisutil "github.com/kthomas/go-redisutil"
	"github.com/nats-io/nats.go"

	"github.com/councilnet/council/common"
	vrf "github.com/councilnet/council/vrf/providers"
)

const defaultNatsStream = "council"

const natsSessionVRFRequestSubject = "council.session.vrf.requested"
const natsSessionVRFFulfilledSubject = "council.session.vrf.fulfilled"
const natsSessionVRFFailedSubject = "council.session.vrf.failed"

const natsSessionVRFRequestMaxInFlight = 32
const vrfRequestAckWait = time.Minute * 5
const vrfRequestMaxDeliveries = 5

func init() {
	if !common.ConsumeNATSStreamingSubscriptions {
		common.Log.Debug("session package consumer configured to skip NATS streaming subscription setup")
		return
	}

	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(defaultNatsStream, []string{
		fmt.Sprintf("%s.>", defaultNatsStream),
	})

	var waitGroup sync.WaitGroup

	createNatsVRFRequestSubscriptions(&waitGroup)
}

func createNatsVRFRequestSubscriptions(wg *sync.WaitGroup) {
	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			vrfRequestAckWait,
			natsSessionVRFRequestSubject,
			natsSessionVRFRequestSubject,
			natsSessionVRFRequestSubject,
			consumeVRFRequestMsg,
			vrfRequestAckWait,
			natsSessionVRFRequestMaxInFlight,
			vrfRequestMaxDeliveries,
			nil,
		)
	}
}

// consumeVRFRequestMsg fulfills a committed randomness request with the
// configured VRF provider; the fulfilment is submitted through the same
// guarded transition any external fulfiller would use
func consumeVRFRequestMsg(msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during VRF fulfilment; %s", r)
			msg.Nak()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS VRF request message on subject: %s", len(msg.Data), msg.Subject)

	params := map[string]interface{}{}
	err := json.Unmarshal(msg.Data, &params)
	if err != nil {
		common.Log.Warningf("failed to unmarshal VRF request message; %s", err.Error())
		msg.Nak()
		return
	}

	sessionID, sessionIDOk := params["session_id"].(string)
	if !sessionIDOk {
		common.Log.Warning("failed to unmarshal session_id during VRF request message handler")
		msg.Nak()
		return
	}

	session := Find(sessionID)
	if session == nil {
		common.Log.Warningf("failed to resolve session during async VRF fulfilment; session id: %s", sessionID)
		msg.Nak()
		return
	}

	provider := vrf.VRFProviderFactory(common.DefaultVRFProvider, common.DefaultVRFSigningKey)
	if provider == nil {
		common.Log.Warningf("failed to resolve VRF provider for session: %s", sessionID)
		msg.Nak()
		return
	}

	fulfillment, err := provider.Fulfill(*session.SessionID, session.VRFSeed)
	if err != nil {
		common.Log.Warningf("VRF fulfilment failed for session: %s; %s", sessionID, err.Error())
		natsutil.NatsJetstreamPublish(natsSessionVRFFailedSubject, msg.Data)
		msg.Nak()
		return
	}

	err = redisutil.WithRedlock(sessionLockKey(sessionID), func() error {
		current := Find(sessionID)
		if current == nil {
			return fmt.Errorf("session not found: %s", sessionID)
		}
		return current.FulfillVRF(fulfillment.RandomNumber, fulfillment.Proof)
	})
	if err != nil {
		common.Log.Warningf("failed to apply VRF fulfilment for session: %s; %s", sessionID, err.Error())
		natsutil.NatsJetstreamPublish(natsSessionVRFFailedSubject, msg.Data)
		msg.Nak()
		return
	}

	common.Log.Debugf("VRF fulfilment applied for session: %s", sessionID)
	payload, _ := json.Marshal(map[string]interface{}{
		"session_id":    sessionID,
		"random_number": fulfillment.RandomNumber,
	})
	natsutil.NatsJetstreamPublish(natsSessionVRFFulfilledSubject, payload)
	msg.Ack()
}

// dispatchVRFRequest publishes the committed seed for asynchronous fulfilment
func (s *CouncilSession) dispatchVRFRequest() {
	payload, _ := json.Marshal(map[string]interface{}{
		"session_id": *s.SessionID,
		"vrf_seed":   s.VRFSeed,
	})
	_, err := natsutil.NatsJetstreamPublish(natsSessionVRFRequestSubject, payload)
	if err != nil {
		common.Log.Warningf("failed to dispatch VRF request for session %s; %s", *s.SessionID, err.Error())
	}
}

func sessionLockKey(sessionID string) string {
	return fmt.Sprintf("council.session.%s", sessionID)
}
