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

package audit

import (
	"encoding/hex"
	"encoding/json"

	"github.com/gin-gonic/gin"
	provide "github.com/provideplatform/provide-go/common"
	util "github.com/provideplatform/provide-go/common/util"

	"github.com/councilnet/council/debate"
	"github.com/councilnet/council/session"
)

// InstallAPI registers the audit API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.POST("/api/v1/audit/sessions/:id", auditSessionHandler)
	r.GET("/api/v1/audit/debates/:id", auditDebateHandler)
}

func authorized(c *gin.Context) bool {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	return appID != nil || orgID != nil || userID != nil
}

// audit a session selection; the caller supplies the candidate pool the
// draw ran over and, optionally, the fulfiller's verification key
func auditSessionHandler(c *gin.Context) {
	if !authorized(c) {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	params := &struct {
		CandidatePool   []string `json:"candidate_pool"`
		VerificationKey *string  `json:"verification_key"`
	}{}
	err = json.Unmarshal(buf, params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	var verificationKey []byte
	if params.VerificationKey != nil {
		verificationKey, err = hex.DecodeString(*params.VerificationKey)
		if err != nil {
			provide.RenderError("invalid verification key", 422, c)
			return
		}
	}

	record := session.Find(c.Param("id"))
	if record == nil {
		provide.RenderError("session not found", 404, c)
		return
	}

	provide.Render(VerifySession(record, params.CandidatePool, verificationKey), 200, c)
}

// audit a debate tally from its persisted ballots
func auditDebateHandler(c *gin.Context) {
	if !authorized(c) {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	record := debate.Find(c.Param("id"))
	if record == nil {
		provide.RenderError("debate not found", 404, c)
		return
	}

	provide.Render(VerifyDebate(record), 200, c)
}
