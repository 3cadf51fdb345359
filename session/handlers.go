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

	"github.com/gin-gonic/gin"
	dbconf "github.com/kthomas/go-db-config"
	redisutil "github.com/kthomas/go-redisutil"
	provide "github.com/provideplatform/provide-go/common"
	"github.com/provideplatform/provide-go/common/util"

	"github.com/councilnet/council/common"
)

// InstallAPI registers the council session API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.GET("/api/v1/sessions", listSessionsHandler)
	r.POST("/api/v1/sessions", createSessionHandler)
	r.GET("/api/v1/sessions/:id", sessionDetailsHandler)

	r.POST("/api/v1/sessions/:id/vrf", requestVRFHandler)
	r.POST("/api/v1/sessions/:id/vrf/fulfill", fulfillVRFHandler)

	r.POST("/api/v1/sessions/:id/agents", selectAgentsHandler)
	r.GET("/api/v1/sessions/:id/verify", verifySelectionHandler)
	r.POST("/api/v1/sessions/:id/complete", completeSessionHandler)
}

// authorizedPrincipal derives the opaque principal for the authenticated
// subject on the request, if any
func authorizedPrincipal(c *gin.Context) *string {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")

	if appID != nil {
		return common.StringOrNil(common.Principal(appID.String()))
	} else if orgID != nil {
		return common.StringOrNil(common.Principal(orgID.String()))
	} else if userID != nil {
		return common.StringOrNil(common.Principal(userID.String()))
	}

	return nil
}

// renderGuardFailure maps stable transition error codes onto HTTP responses;
// the record is unchanged whenever one of these is rendered
func renderGuardFailure(err error, c *gin.Context) {
	if coded, codedOk := err.(*common.CodedError); codedOk {
		status := 422
		switch coded.Code {
		case common.ErrUnauthorized:
			status = 403
		case common.ErrAlreadyExists:
			status = 409
		case common.ErrSessionNotFound:
			status = 404
		}
		provide.Render(map[string]interface{}{
			"code":    coded.Code,
			"message": coded.Message,
		}, status, c)
		return
	}

	provide.RenderError(err.Error(), 500, c)
}

// list sessions visible to the caller
func listSessionsHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	query := db.Where("authority = ?", *principal).Order("created_at DESC")

	var sessions []*CouncilSession
	provide.Paginate(c, query, &CouncilSession{}).Find(&sessions)
	for _, session := range sessions {
		session.unmarshalAgents()
	}
	provide.Render(sessions, 200, c)
}

// initialize a council session; the caller becomes the record authority
func createSessionHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	session := &CouncilSession{}
	err = json.Unmarshal(buf, session)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	session.Authority = principal

	if session.SessionID != nil {
		if existing := Find(*session.SessionID); existing != nil {
			renderGuardFailure(common.NewCodedError(common.ErrAlreadyExists, "session id already exists"), c)
			return
		}
	}

	if session.Create() {
		provide.Render(session, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = session.Errors
		provide.Render(obj, 422, c)
	}
}

// fetch session record details
func sessionDetailsHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	session := Find(c.Param("id"))
	if session == nil {
		provide.RenderError("session not found", 404, c)
		return
	}

	provide.Render(session, 200, c)
}

// commit a VRF seed for the session
func requestVRFHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	params := &struct {
		VRFSeed *uint64 `json:"vrf_seed"`
	}{}
	err = json.Unmarshal(buf, params)
	if err != nil || params.VRFSeed == nil {
		provide.RenderError("vrf_seed required", 422, c)
		return
	}

	sessionID := c.Param("id")
	err = redisutil.WithRedlock(sessionLockKey(sessionID), func() error {
		session := Find(sessionID)
		if session == nil {
			return common.NewCodedError(common.ErrSessionNotFound, "session not found")
		}
		return session.RequestVRF(*principal, *params.VRFSeed)
	})
	if err != nil {
		renderGuardFailure(err, c)
		return
	}

	provide.Render(Find(sessionID), 202, c)
}

// record a VRF fulfilment; any authenticated caller may submit -- the proof,
// not the principal, is what downstream verifiers trust
func fulfillVRFHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	params := &struct {
		RandomNumber *uint64 `json:"random_number"`
		VRFProof     []byte  `json:"vrf_proof"`
	}{}
	err = json.Unmarshal(buf, params)
	if err != nil || params.RandomNumber == nil {
		provide.RenderError("random_number and vrf_proof required", 422, c)
		return
	}

	sessionID := c.Param("id")
	err = redisutil.WithRedlock(sessionLockKey(sessionID), func() error {
		session := Find(sessionID)
		if session == nil {
			return common.NewCodedError(common.ErrSessionNotFound, "session not found")
		}
		return session.FulfillVRF(*params.RandomNumber, params.VRFProof)
	})
	if err != nil {
		renderGuardFailure(err, c)
		return
	}

	provide.Render(Find(sessionID), 200, c)
}

// store the selected committee, or draw it deterministically from a supplied
// candidate pool when agent_ids is omitted
func selectAgentsHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	params := &struct {
		AgentIDs      []string `json:"agent_ids"`
		CandidatePool []string `json:"candidate_pool"`
	}{}
	err = json.Unmarshal(buf, params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	if params.AgentIDs == nil && params.CandidatePool == nil {
		provide.RenderError("agent_ids or candidate_pool required", 422, c)
		return
	}

	sessionID := c.Param("id")
	err = redisutil.WithRedlock(sessionLockKey(sessionID), func() error {
		session := Find(sessionID)
		if session == nil {
			return common.NewCodedError(common.ErrSessionNotFound, "session not found")
		}
		if params.AgentIDs != nil {
			return session.SelectAgents(*principal, params.AgentIDs)
		}
		return session.DrawAgents(*principal, params.CandidatePool)
	})
	if err != nil {
		renderGuardFailure(err, c)
		return
	}

	provide.Render(Find(sessionID), 200, c)
}

// verify the persisted selection; read-only and idempotent
func verifySelectionHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	session := Find(c.Param("id"))
	if session == nil {
		provide.RenderError("session not found", 404, c)
		return
	}

	valid, err := session.VerifySelection()
	if err != nil {
		renderGuardFailure(err, c)
		return
	}

	provide.Render(map[string]interface{}{
		"session_id": session.SessionID,
		"valid":      valid,
	}, 200, c)
}

// mark the selection round terminal
func completeSessionHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	sessionID := c.Param("id")
	err := redisutil.WithRedlock(sessionLockKey(sessionID), func() error {
		session := Find(sessionID)
		if session == nil {
			return common.NewCodedError(common.ErrSessionNotFound, "session not found")
		}
		return session.Complete(*principal)
	})
	if err != nil {
		renderGuardFailure(err, c)
		return
	}

	provide.Render(Find(sessionID), 200, c)
}
