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

package dmt

import (
	"encoding/json"
	"testing"

	gnarkhash "github.com/consensys/gnark-crypto/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeContentHashDeterministic(t *testing.T) {
	h := gnarkhash.MIMC_BN254.New()

	content := &treeContent{hash: h, value: []byte("transition digest")}
	digest0, err := content.CalculateHash()
	require.NoError(t, err)

	digest1, err := content.CalculateHash()
	require.NoError(t, err)
	assert.Equal(t, digest0, digest1)
}

func TestTreeContentEquals(t *testing.T) {
	h := gnarkhash.MIMC_BN254.New()

	a := &treeContent{hash: h, value: []byte("transition digest")}
	b := &treeContent{hash: h, value: []byte("transition digest")}
	c := &treeContent{hash: h, value: []byte("another digest")}

	equal, err := a.Equals(b)
	require.NoError(t, err)
	assert.True(t, equal)

	equal, err = a.Equals(c)
	require.NoError(t, err)
	assert.False(t, equal)
}

func TestTreeContentHashRequiresHashFunction(t *testing.T) {
	content := &treeContent{value: []byte("transition digest")}
	_, err := content.CalculateHash()
	require.Error(t, err)
}

func TestTreeContentJSONRoundtrip(t *testing.T) {
	content := &treeContent{value: []byte{0x01, 0x02, 0x03}}

	raw, err := json.Marshal(content)
	require.NoError(t, err)

	decoded := &treeContent{}
	require.NoError(t, json.Unmarshal(raw, decoded))
	assert.Equal(t, content.value, decoded.value)
}
