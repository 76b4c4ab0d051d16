// Copyright 2024 Scorehub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttributesIgnoresCommentsAndBlanks(t *testing.T) {
	attrs, err := ParseAttributesString(`
# velocity edits on drums are always ours
tracks/drums/* velocity ours

tracks/bass/* timing theirs
`)
	require.NoError(t, err)
	assert.Len(t, attrs.Rules(), 2)
}

func TestResolveFirstMatchWins(t *testing.T) {
	attrs, err := ParseAttributesString(`
tracks/drums/* velocity ours
tracks/drums/* velocity theirs
* * union
`)
	require.NoError(t, err)

	assert.Equal(t, StrategyOurs, attrs.Resolve("tracks/drums/kick", "velocity"))
	assert.Equal(t, StrategyUnion, attrs.Resolve("tracks/drums/kick", "timing"))
}

func TestResolveWildcards(t *testing.T) {
	attrs, err := ParseAttributesString(`
tracks/* pitch manual
* velocity union
`)
	require.NoError(t, err)

	// "*" matches a single path segment.
	assert.Equal(t, StrategyManual, attrs.Resolve("tracks/lead", "pitch"))
	assert.Equal(t, StrategyAuto, attrs.Resolve("tracks/lead/regions/r1", "pitch"))
	assert.Equal(t, StrategyUnion, attrs.Resolve("anything", "velocity"))
}

func TestResolveDefaultsToAuto(t *testing.T) {
	attrs, err := ParseAttributesString("tracks/drums/* velocity ours\n")
	require.NoError(t, err)
	assert.Equal(t, StrategyAuto, attrs.Resolve("tracks/lead/r1", "velocity"))

	var nilAttrs *Attributes
	assert.Equal(t, StrategyAuto, nilAttrs.Resolve("anything", "anything"))
}

func TestParseAttributesRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"tracks/drums velocity\n",
		"tracks/drums velocity ours extra\n",
		"tracks/drums velocity smoosh\n",
	} {
		_, err := ParseAttributesString(s)
		assert.ErrorIs(t, err, ErrMalformedRule, "input %q", s)
	}
}
