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
	"fmt"

	"github.com/gin-gonic/gin"
	dbconf "github.com/kthomas/go-db-config"
	redisutil "github.com/kthomas/go-redisutil"
	provide "github.com/provideplatform/provide-go/common"
	"github.com/provideplatform/provide-go/common/util"

	"github.com/councilnet/council/common"
)

// InstallAPI registers the debate API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.GET("/api/v1/debates", listDebatesHandler)
	r.POST("/api/v1/debates", createDebateHandler)
	r.GET("/api/v1/debates/:id", debateDetailsHandler)

	r.POST("/api/v1/debates/:id/votes", castVoteHandler)
	r.POST("/api/v1/debates/:id/tally", tallyVotesHandler)
	r.GET("/api/v1/debates/:id/results", voteResultsHandler)
	r.POST("/api/v1/debates/:id/rounds", advanceRoundHandler)
	r.POST("/api/v1/debates/:id/close", closeDebateHandler)
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
		case common.ErrAlreadyExists, common.ErrAlreadyVoted:
			status = 409
		case common.ErrDebateNotFound:
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

func debateLockKey(debateID string) string {
	return fmt.Sprintf("council.debate.%s", debateID)
}

// list debates visible to the caller
func listDebatesHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	query := db.Where("authority = ?", *principal).Order("created_at DESC")

	var debates []*Debate
	provide.Paginate(c, query, &Debate{}).Find(&debates)
	for _, debate := range debates {
		debate.unmarshalVotes()
	}
	provide.Render(debates, 200, c)
}

// initialize a debate; the caller becomes the record authority
func createDebateHandler(c *gin.Context) {
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

	debate := &Debate{}
	err = json.Unmarshal(buf, debate)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	debate.Authority = principal

	if debate.DebateID != nil {
		if existing := Find(*debate.DebateID); existing != nil {
			renderGuardFailure(common.NewCodedError(common.ErrAlreadyExists, "debate id already exists"), c)
			return
		}
	}

	if debate.Create() {
		provide.Render(debate, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = debate.Errors
		provide.Render(obj, 422, c)
	}
}

// fetch debate record details
func debateDetailsHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	debate := Find(c.Param("id"))
	if debate == nil {
		provide.RenderError("debate not found", 404, c)
		return
	}

	provide.Render(debate, 200, c)
}

// append a ballot to the debate; any authenticated caller may vote on
// behalf of an agent id it controls
func castVoteHandler(c *gin.Context) {
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
		AgentID    *string     `json:"agent_id"`
		VoteOption *VoteOption `json:"vote_option"`
		Confidence *uint8      `json:"confidence"`
		Reasoning  string      `json:"reasoning"`
	}{}
	err = json.Unmarshal(buf, params)
	if err != nil || params.AgentID == nil || params.VoteOption == nil || params.Confidence == nil {
		provide.RenderError("agent_id, vote_option and confidence required", 422, c)
		return
	}

	debateID := c.Param("id")
	err = redisutil.WithRedlock(debateLockKey(debateID), func() error {
		debate := Find(debateID)
		if debate == nil {
			return common.NewCodedError(common.ErrDebateNotFound, "debate not found")
		}
		return debate.CastVote(*params.AgentID, *params.VoteOption, *params.Confidence, params.Reasoning)
	})
	if err != nil {
		renderGuardFailure(err, c)
		return
	}

	provide.Render(Find(debateID), 201, c)
}

// reduce the ballots to a final outcome; completes the debate
func tallyVotesHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	debateID := c.Param("id")
	err := redisutil.WithRedlock(debateLockKey(debateID), func() error {
		debate := Find(debateID)
		if debate == nil {
			return common.NewCodedError(common.ErrDebateNotFound, "debate not found")
		}
		return debate.Tally(*principal)
	})
	if err != nil {
		renderGuardFailure(err, c)
		return
	}

	provide.Render(Find(debateID), 200, c)
}

// fetch the tally summary; guarded until votes_tallied
func voteResultsHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	debate := Find(c.Param("id"))
	if debate == nil {
		provide.RenderError("debate not found", 404, c)
		return
	}

	results, err := debate.Results()
	if err != nil {
		renderGuardFailure(err, c)
		return
	}

	provide.Render(results, 200, c)
}

// advance the debate to its next discussion round
func advanceRoundHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	debateID := c.Param("id")
	err := redisutil.WithRedlock(debateLockKey(debateID), func() error {
		debate := Find(debateID)
		if debate == nil {
			return common.NewCodedError(common.ErrDebateNotFound, "debate not found")
		}
		return debate.AdvanceRound(*principal)
	})
	if err != nil {
		renderGuardFailure(err, c)
		return
	}

	provide.Render(Find(debateID), 200, c)
}

// close the debate without tallying; idempotent once closed
func closeDebateHandler(c *gin.Context) {
	principal := authorizedPrincipal(c)
	if principal == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	debateID := c.Param("id")
	err := redisutil.WithRedlock(debateLockKey(debateID), func() error {
		debate := Find(debateID)
		if debate == nil {
			return common.NewCodedError(common.ErrDebateNotFound, "debate not found")
		}
		return debate.Close(*principal)
	})
	if err != nil {
		renderGuardFailure(err, c)
		return
	}

	provide.Render(Find(debateID), 200, c)
}
