// internal/types/rules.go
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

/*
 * Rule AST for magic shelf filters.
 *
 * A filter is a GroupRule whose children are Rules (leaves) or nested
 * GroupRules. The persisted JSON distinguishes the two with a "type":"group"
 * discriminator on groups. An element with no type that has "rules" and no
 * "field" is also read as a group; anything else is a leaf rule.
 *
 * Key types:
 *   - RuleField: filterable book attribute (wire name)
 *   - Operator: comparison applied by a leaf
 *   - Rule: leaf node {field, operator, value, valueStart, valueEnd}
 *   - GroupRule: internal node {join, rules}
 *   - Node: closed sum type over *Rule and *GroupRule
 *
 * Decoding is per element: a child that fails to decode is recorded in
 * GroupRule.Skipped and left out of Rules, so one bad leaf never discards
 * the rest of the tree.
 */

// RuleField identifies a filterable book attribute.
type RuleField string

const (
	FieldLibrary              RuleField = "library"
	FieldTitle                RuleField = "title"
	FieldSubtitle             RuleField = "subtitle"
	FieldPublisher            RuleField = "publisher"
	FieldLanguage             RuleField = "language"
	FieldSeriesName           RuleField = "seriesName"
	FieldFileType             RuleField = "fileType"
	FieldFileSize             RuleField = "fileSize"
	FieldMetadataScore        RuleField = "metadataScore"
	FieldPageCount            RuleField = "pageCount"
	FieldSeriesNumber         RuleField = "seriesNumber"
	FieldSeriesTotal          RuleField = "seriesTotal"
	FieldAmazonRating         RuleField = "amazonRating"
	FieldAmazonReviewCount    RuleField = "amazonReviewCount"
	FieldGoodreadsRating      RuleField = "goodreadsRating"
	FieldGoodreadsReviewCount RuleField = "goodreadsReviewCount"
	FieldHardcoverRating      RuleField = "hardcoverRating"
	FieldHardcoverReviewCount RuleField = "hardcoverReviewCount"
	FieldPersonalRating       RuleField = "personalRating"
	FieldPublishedDate        RuleField = "publishedDate"
	FieldDateFinished         RuleField = "dateFinished"
	FieldLastReadTime         RuleField = "lastReadTime"
	FieldReadStatus           RuleField = "readStatus"
	FieldAuthors              RuleField = "authors"
	FieldCategories           RuleField = "categories"
	FieldMoods                RuleField = "moods"
	FieldTags                 RuleField = "tags"
)

// AllRuleFields lists every declared field in declaration order.
var AllRuleFields = []RuleField{
	FieldLibrary, FieldTitle, FieldSubtitle, FieldPublisher, FieldLanguage,
	FieldSeriesName, FieldFileType, FieldFileSize, FieldMetadataScore,
	FieldPageCount, FieldSeriesNumber, FieldSeriesTotal, FieldAmazonRating,
	FieldAmazonReviewCount, FieldGoodreadsRating, FieldGoodreadsReviewCount,
	FieldHardcoverRating, FieldHardcoverReviewCount, FieldPersonalRating,
	FieldPublishedDate, FieldDateFinished, FieldLastReadTime, FieldReadStatus,
	FieldAuthors, FieldCategories, FieldMoods, FieldTags,
}

// Operator identifies the comparison a leaf rule applies.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpContains           Operator = "contains"
	OpDoesNotContain     Operator = "does_not_contain"
	OpStartsWith         Operator = "starts_with"
	OpEndsWith           Operator = "ends_with"
	OpGreaterThan        Operator = "greater_than"
	OpGreaterThanEqualTo Operator = "greater_than_equal_to"
	OpLessThan           Operator = "less_than"
	OpLessThanEqualTo    Operator = "less_than_equal_to"
	OpInBetween          Operator = "in_between"
	OpIsEmpty            Operator = "is_empty"
	OpIsNotEmpty         Operator = "is_not_empty"
	OpIncludesAny        Operator = "includes_any"
	OpExcludesAll        Operator = "excludes_all"
	OpIncludesAll        Operator = "includes_all"
)

// AllOperators lists every declared operator in declaration order.
var AllOperators = []Operator{
	OpEquals, OpNotEquals, OpContains, OpDoesNotContain, OpStartsWith,
	OpEndsWith, OpGreaterThan, OpGreaterThanEqualTo, OpLessThan,
	OpLessThanEqualTo, OpInBetween, OpIsEmpty, OpIsNotEmpty, OpIncludesAny,
	OpExcludesAll, OpIncludesAll,
}

// Join combines the children of a GroupRule.
type Join string

const (
	JoinAnd Join = "and"
	JoinOr  Join = "or"
)

// foldName reduces a wire name to its spelling-insensitive key:
// "READ_STATUS", "read_status" and "readStatus" all fold to "readstatus".
func foldName(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
}

var (
	fieldsByKey    = make(map[string]RuleField, len(AllRuleFields))
	operatorsByKey = make(map[string]Operator, len(AllOperators))
)

func init() {
	for _, f := range AllRuleFields {
		fieldsByKey[foldName(string(f))] = f
	}
	for _, op := range AllOperators {
		operatorsByKey[foldName(string(op))] = op
	}
}

// ParseRuleField maps a wire name to its canonical RuleField.
// Unknown names are returned unchanged so the compiler can apply its fallback.
func ParseRuleField(s string) RuleField {
	if f, ok := fieldsByKey[foldName(s)]; ok {
		return f
	}
	return RuleField(s)
}

// ParseOperator maps a wire name to its canonical Operator.
// Unknown names are returned unchanged.
func ParseOperator(s string) Operator {
	if op, ok := operatorsByKey[foldName(s)]; ok {
		return op
	}
	return Operator(s)
}

// ParseJoin maps a wire name to a Join. Anything other than "or" is AND.
func ParseJoin(s string) Join {
	if strings.EqualFold(strings.TrimSpace(s), string(JoinOr)) {
		return JoinOr
	}
	return JoinAnd
}

// Node is a rule tree node: either *Rule or *GroupRule.
type Node interface {
	isNode()
}

// Rule is a leaf comparison. Value holds a scalar for most operators and a
// list for includes_any/excludes_all/includes_all. ValueStart and ValueEnd
// are only read by in_between.
type Rule struct {
	Field      RuleField `json:"field"`
	Operator   Operator  `json:"operator"`
	Value      any       `json:"value,omitempty"`
	ValueStart any       `json:"valueStart,omitempty"`
	ValueEnd   any       `json:"valueEnd,omitempty"`
}

func (*Rule) isNode() {}

// UnmarshalJSON decodes a leaf and canonicalizes its field and operator names.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Field      string `json:"field"`
		Operator   string `json:"operator"`
		Value      any    `json:"value"`
		ValueStart any    `json:"valueStart"`
		ValueEnd   any    `json:"valueEnd"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Field == "" {
		return errors.New("rule has no field")
	}
	if raw.Operator == "" {
		return errors.New("rule has no operator")
	}
	*r = Rule{
		Field:      ParseRuleField(raw.Field),
		Operator:   ParseOperator(raw.Operator),
		Value:      raw.Value,
		ValueStart: raw.ValueStart,
		ValueEnd:   raw.ValueEnd,
	}
	return nil
}

// SkippedNode records a child that could not be decoded.
type SkippedNode struct {
	Index int
	Err   error
}

// GroupRule joins its children with AND or OR.
type GroupRule struct {
	Name    string
	Join    Join
	Rules   []Node
	Skipped []SkippedNode
}

func (*GroupRule) isNode() {}

// MarshalJSON writes the group with its "type":"group" discriminator.
func (g *GroupRule) MarshalJSON() ([]byte, error) {
	rules := g.Rules
	if rules == nil {
		rules = []Node{}
	}
	return json.Marshal(struct {
		Type  string `json:"type"`
		Name  string `json:"name,omitempty"`
		Join  Join   `json:"join"`
		Rules []Node `json:"rules"`
	}{
		Type:  "group",
		Name:  g.Name,
		Join:  g.Join,
		Rules: rules,
	})
}

// UnmarshalJSON decodes each child independently. Children that fail to
// decode are appended to Skipped rather than failing the whole group.
func (g *GroupRule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string            `json:"name"`
		Join  string            `json:"join"`
		Rules []json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*g = GroupRule{
		Name:  raw.Name,
		Join:  ParseJoin(raw.Join),
		Rules: make([]Node, 0, len(raw.Rules)),
	}

	for i, elem := range raw.Rules {
		node, err := decodeNode(elem)
		if err != nil {
			g.Skipped = append(g.Skipped, SkippedNode{Index: i, Err: err})
			continue
		}
		g.Rules = append(g.Rules, node)
	}
	return nil
}

// decodeNode reads the "type" discriminator and decodes the matching node.
func decodeNode(data json.RawMessage) (Node, error) {
	var head struct {
		Type  string          `json:"type"`
		Field json.RawMessage `json:"field"`
		Rules json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, errors.New("rule is null")
	}

	// Older documents omit the discriminator on nested groups.
	untypedGroup := head.Type == "" && head.Field == nil && head.Rules != nil
	if strings.EqualFold(head.Type, "group") || untypedGroup {
		var group GroupRule
		if err := json.Unmarshal(data, &group); err != nil {
			return nil, err
		}
		return &group, nil
	}

	var rule Rule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ParseGroupRule decodes a persisted filter document. Only a document that is
// not a JSON object fails; malformed children are tolerated via Skipped.
func ParseGroupRule(data []byte) (*GroupRule, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidFilter
	}
	var group GroupRule
	if err := json.Unmarshal(trimmed, &group); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return &group, nil
}

// Validate enforces MaxRuleDepth and MaxRulesPerGroup. It is applied when a
// shelf is saved, never at compile time.
func (g *GroupRule) Validate() error {
	return validateGroup(g, 1)
}

func validateGroup(g *GroupRule, depth int) error {
	if depth > MaxRuleDepth {
		return ErrRuleTooDeep
	}
	if len(g.Rules)+len(g.Skipped) > MaxRulesPerGroup {
		return ErrTooManyRules
	}
	for _, child := range g.Rules {
		if sub, ok := child.(*GroupRule); ok {
			if err := validateGroup(sub, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
