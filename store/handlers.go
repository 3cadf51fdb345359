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

package store

import (
	"strconv"

	"github.com/gin-gonic/gin"
	dbconf "github.com/kthomas/go-db-config"
	provide "github.com/provideplatform/provide-go/common"
	util "github.com/provideplatform/provide-go/common/util"
)

// InstallAPI registers the transition journal API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.GET("/api/v1/journals", listJournalsHandler)
	r.GET("/api/v1/journals/:kind", journalDetailsHandler)
	r.GET("/api/v1/journals/:kind/state", journalStateHandler)
}

func authorized(c *gin.Context) bool {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	return appID != nil || orgID != nil || userID != nil
}

func listJournalsHandler(c *gin.Context) {
	if !authorized(c) {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	var journals []*Journal
	provide.Paginate(c, db.Order("kind"), &Journal{}).Find(&journals)
	provide.Render(journals, 200, c)
}

func journalDetailsHandler(c *gin.Context) {
	if !authorized(c) {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	kind := c.Param("kind")

	root, err := Root(kind)
	if err != nil {
		provide.RenderError(err.Error(), 404, c)
		return
	}

	height, err := Height(kind)
	if err != nil {
		provide.RenderError(err.Error(), 404, c)
		return
	}

	provide.Render(map[string]interface{}{
		"kind":   kind,
		"root":   root,
		"height": height,
	}, 200, c)
}

func journalStateHandler(c *gin.Context) {
	if !authorized(c) {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	epoch, err := strconv.ParseUint(c.Query("epoch"), 10, 64)
	if err != nil {
		provide.RenderError("epoch required", 422, c)
		return
	}

	journalState, err := StateAt(c.Param("kind"), epoch)
	if err != nil {
		provide.RenderError(err.Error(), 404, c)
		return
	}

	provide.Render(journalState, 200, c)
}
