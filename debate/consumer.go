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
	"encoding/json"

	"github.com/kthomas/go-natsutil"

	"github.com/councilnet/council/common"
)

const defaultNatsStream = "council"

const notificationDebateTallied = "council.debate.tallied"
const notificationDebateClosed = "council.debate.closed"

// dispatchNotification publishes a terminal-state notification for
// downstream consumers; delivery is best-effort and never blocks the
// transition that triggered it
func (d *Debate) dispatchNotification(subject string) {
	payload, _ := json.Marshal(map[string]interface{}{
		"debate_id": d.DebateID,
		"status":    d.Status,
	})

	_, err := natsutil.NatsJetstreamPublish(subject, payload)
	if err != nil {
		common.Log.Warningf("failed to publish %s notification for debate %s; %s", subject, *d.DebateID, err.Error())
	}
}
