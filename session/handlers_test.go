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

package session

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/councilnet/council/common"
)

func TestRenderGuardFailureStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for code, expected := range map[uint32]int{
		common.ErrUnauthorized:         403,
		common.ErrAlreadyExists:        409,
		common.ErrSessionNotFound:      404,
		common.ErrInvalidSessionStatus: 422,
		common.ErrInvalidAgentCount:    422,
		common.ErrDiversityViolated:    422,
	} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		renderGuardFailure(common.NewCodedError(code, "guard failure"), c)

		assert.Equal(t, expected, w.Code, "unexpected status for code %d", code)
		assert.Contains(t, w.Body.String(), fmt.Sprintf("%d", code))
	}
}

func TestRenderGuardFailureUncodedError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	renderGuardFailure(fmt.Errorf("something unexpected"), c)
	assert.Equal(t, 500, w.Code)
}
