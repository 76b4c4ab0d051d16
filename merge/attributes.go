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
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gobwas/glob"
)

// Strategy is a per-dimension merge policy named by an attribute rule.
type Strategy string

const (
	StrategyOurs   Strategy = "ours"
	StrategyTheirs Strategy = "theirs"
	StrategyUnion  Strategy = "union"
	StrategyAuto   Strategy = "auto"
	StrategyManual Strategy = "manual"
)

var validStrategies = map[Strategy]struct{}{
	StrategyOurs:   {},
	StrategyTheirs: {},
	StrategyUnion:  {},
	StrategyAuto:   {},
	StrategyManual: {},
}

var ErrMalformedRule = errors.New("malformed attribute rule")

// AttributeRule binds a path glob and a dimension to a merge strategy. "*"
// in the path matches any single path segment; a dimension of "*" matches
// any dimension.
type AttributeRule struct {
	PathGlob  string
	Dimension string
	Strategy  Strategy

	matcher glob.Glob
}

// Attributes is an ordered rule list. Resolution is advisory: the merge
// engine does not consult these rules when classifying conflicts. Wiring
// them into conflict resolution changes merge outcomes for existing
// content, so that step is gated on an explicit, versioned decision rather
// than happening implicitly here.
type Attributes struct {
	rules []AttributeRule
}

// ParseAttributes reads rule lines of the form
//
//	<path-glob> <dimension> <strategy>
//
// one per line. Blank lines and lines starting with '#' are ignored.
func ParseAttributes(r io.Reader) (*Attributes, error) {
	attrs := &Attributes{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d: expected 3 fields, got %d", ErrMalformedRule, lineNo, len(fields))
		}

		strategy := Strategy(fields[2])
		if _, ok := validStrategies[strategy]; !ok {
			return nil, fmt.Errorf("%w: line %d: unknown strategy %q", ErrMalformedRule, lineNo, fields[2])
		}

		matcher, err := glob.Compile(fields[0], '/')
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad path glob %q: %v", ErrMalformedRule, lineNo, fields[0], err)
		}

		attrs.rules = append(attrs.rules, AttributeRule{
			PathGlob:  fields[0],
			Dimension: fields[1],
			Strategy:  strategy,
			matcher:   matcher,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return attrs, nil
}

// ParseAttributesString is ParseAttributes over a string.
func ParseAttributesString(s string) (*Attributes, error) {
	return ParseAttributes(strings.NewReader(s))
}

// Resolve returns the strategy of the first rule, in file order, matching
// (path, dimension). When nothing matches the answer is StrategyAuto.
func (a *Attributes) Resolve(path, dimension string) Strategy {
	if a == nil {
		return StrategyAuto
	}
	for _, rule := range a.rules {
		if rule.Dimension != "*" && rule.Dimension != dimension {
			continue
		}
		if rule.matcher.Match(path) {
			return rule.Strategy
		}
	}
	return StrategyAuto
}

// Rules returns the parsed rules in file order.
func (a *Attributes) Rules() []AttributeRule {
	if a == nil {
		return nil
	}
	return a.rules
}
