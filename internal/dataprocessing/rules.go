package dataprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// Rule kinds
const (
	KindRatio      = "ratio"
	KindMembership = "membership"
	KindRecode     = "recode"
	KindCompare    = "compare"
)

// Default labels for the cross-column comparison flag.
const (
	DefaultDiffLabel = "yes"
	DefaultSameLabel = "no"
)

// Rule derives one output column from existing columns, row by row.
type Rule interface {
	Kind() string
	Output() string
	// Inputs lists the columns the rule reads.
	Inputs() []string
	// Check validates input column types against the whole table before any
	// row is derived.
	Check(table domain.Table) error
	Derive(row domain.Record) domain.Value
}

// RatioRule computes numerator / denominator with IEEE-754 semantics:
// x/0 is ±Inf and 0/0 is NaN. A missing operand gives a missing result.
type RatioRule struct {
	Out         string
	Numerator   string
	Denominator string
}

func (r RatioRule) Kind() string     { return KindRatio }
func (r RatioRule) Output() string   { return r.Out }
func (r RatioRule) Inputs() []string { return []string{r.Numerator, r.Denominator} }

func (r RatioRule) Check(table domain.Table) error {
	if err := requireNumeric(table, r.Numerator); err != nil {
		return err
	}
	return requireNumeric(table, r.Denominator)
}

func (r RatioRule) Derive(row domain.Record) domain.Value {
	num, ok1 := row.Get(r.Numerator).Float()
	den, ok2 := row.Get(r.Denominator).Float()
	if !ok1 || !ok2 {
		return domain.Null()
	}
	return domain.Num(num / den)
}

// MembershipSet is a fixed set of category values.
type MembershipSet struct {
	members map[string]struct{}
}

// NewMembershipSet builds a set from its members.
func NewMembershipSet(values ...string) MembershipSet {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return MembershipSet{members: m}
}

// Contains reports whether v belongs to the set. Missing never does.
func (s MembershipSet) Contains(v domain.Value) bool {
	if v.IsMissing() {
		return false
	}
	_, ok := s.members[v.String()]
	return ok
}

// Len returns the number of members.
func (s MembershipSet) Len() int { return len(s.members) }

// Members returns the members sorted.
func (s MembershipSet) Members() []string {
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// MembershipRule labels each row by whether Column's value is in Set.
// Values outside the set, including missing, get OtherLabel.
type MembershipRule struct {
	Out         string
	Column      string
	Set         MembershipSet
	MemberLabel string
	OtherLabel  string
}

func (r MembershipRule) Kind() string                 { return KindMembership }
func (r MembershipRule) Output() string               { return r.Out }
func (r MembershipRule) Inputs() []string             { return []string{r.Column} }
func (r MembershipRule) Check(table domain.Table) error { return nil }

func (r MembershipRule) Derive(row domain.Record) domain.Value {
	if r.Set.Contains(row.Get(r.Column)) {
		return domain.Str(r.MemberLabel)
	}
	return domain.Str(r.OtherLabel)
}

// CodeMap maps coded values to labels, with a default for everything else.
// Lookup is total.
type CodeMap struct {
	codes        map[string]string
	defaultLabel string
}

// NewCodeMap copies codes so later changes to the caller's map are not seen.
func NewCodeMap(codes map[string]string, defaultLabel string) CodeMap {
	cp := make(map[string]string, len(codes))
	for k, v := range codes {
		cp[k] = v
	}
	return CodeMap{codes: cp, defaultLabel: defaultLabel}
}

// Lookup returns the label for v, or the default. Numbers are matched by
// their shortest rendering, so the code 10 matches the key "10".
func (m CodeMap) Lookup(v domain.Value) string {
	if v.IsMissing() {
		return m.defaultLabel
	}
	if label, ok := m.codes[v.String()]; ok {
		return label
	}
	return m.defaultLabel
}

// Default returns the fallback label.
func (m CodeMap) Default() string { return m.defaultLabel }

// RecodeRule replaces a code with its label.
type RecodeRule struct {
	Out    string
	Column string
	Codes  CodeMap
}

func (r RecodeRule) Kind() string                 { return KindRecode }
func (r RecodeRule) Output() string               { return r.Out }
func (r RecodeRule) Inputs() []string             { return []string{r.Column} }
func (r RecodeRule) Check(table domain.Table) error { return nil }

func (r RecodeRule) Derive(row domain.Record) domain.Value {
	return domain.Str(r.Codes.Lookup(row.Get(r.Column)))
}

// CompareRule flags rows whose Left and Right values differ. Missing is a
// value of its own: missing against a concrete value differs, missing
// against missing does not.
type CompareRule struct {
	Out       string
	Left      string
	Right     string
	DiffLabel string
	SameLabel string
}

func (r CompareRule) Kind() string                 { return KindCompare }
func (r CompareRule) Output() string               { return r.Out }
func (r CompareRule) Inputs() []string             { return []string{r.Left, r.Right} }
func (r CompareRule) Check(table domain.Table) error { return nil }

func (r CompareRule) Derive(row domain.Record) domain.Value {
	if sameValue(row.Get(r.Left), row.Get(r.Right)) {
		return domain.Str(r.SameLabel)
	}
	return domain.Str(r.DiffLabel)
}

func sameValue(a, b domain.Value) bool {
	if a.IsNumber() && b.IsNumber() && math.IsNaN(a.Num) && math.IsNaN(b.Num) {
		return true
	}
	return a.Equal(b)
}

// RuleSpec is the declarative form of a rule, as read from pipeline files
// and API requests.
type RuleSpec struct {
	Kind   string `json:"kind" yaml:"kind" validate:"required,oneof=ratio membership recode compare"`
	Output string `json:"output" yaml:"output" validate:"required"`

	// ratio
	Numerator   string `json:"numerator,omitempty" yaml:"numerator,omitempty"`
	Denominator string `json:"denominator,omitempty" yaml:"denominator,omitempty"`

	// membership and recode
	Column      string   `json:"column,omitempty" yaml:"column,omitempty"`
	Members     []string `json:"members,omitempty" yaml:"members,omitempty"`
	MemberLabel string   `json:"member_label,omitempty" yaml:"member_label,omitempty"`
	OtherLabel  string   `json:"other_label,omitempty" yaml:"other_label,omitempty"`

	// recode
	Codes   map[string]string `json:"codes,omitempty" yaml:"codes,omitempty"`
	Default string            `json:"default,omitempty" yaml:"default,omitempty"`

	// compare
	Left      string `json:"left,omitempty" yaml:"left,omitempty"`
	Right     string `json:"right,omitempty" yaml:"right,omitempty"`
	DiffLabel string `json:"diff_label,omitempty" yaml:"diff_label,omitempty"`
	SameLabel string `json:"same_label,omitempty" yaml:"same_label,omitempty"`
}

// Compile turns the declaration into a Rule, checking that the fields its kind
// needs are present.
func (s RuleSpec) Compile() (Rule, error) {
	if s.Output == "" {
		return nil, errors.NewAppValidationError("output column is required")
	}

	missing := func(field string) error {
		return errors.NewAppValidationError(fmt.Sprintf("%s rule requires %s", s.Kind, field))
	}

	switch s.Kind {
	case KindRatio:
		if s.Numerator == "" {
			return nil, missing("numerator")
		}
		if s.Denominator == "" {
			return nil, missing("denominator")
		}
		return RatioRule{Out: s.Output, Numerator: s.Numerator, Denominator: s.Denominator}, nil

	case KindMembership:
		if s.Column == "" {
			return nil, missing("column")
		}
		if len(s.Members) == 0 {
			return nil, missing("members")
		}
		if s.MemberLabel == "" || s.OtherLabel == "" {
			return nil, missing("member_label and other_label")
		}
		return MembershipRule{
			Out:         s.Output,
			Column:      s.Column,
			Set:         NewMembershipSet(s.Members...),
			MemberLabel: s.MemberLabel,
			OtherLabel:  s.OtherLabel,
		}, nil

	case KindRecode:
		if s.Column == "" {
			return nil, missing("column")
		}
		if s.Default == "" {
			return nil, missing("default")
		}
		return RecodeRule{Out: s.Output, Column: s.Column, Codes: NewCodeMap(s.Codes, s.Default)}, nil

	case KindCompare:
		if s.Left == "" || s.Right == "" {
			return nil, missing("left and right")
		}
		diff, same := s.DiffLabel, s.SameLabel
		if diff == "" {
			diff = DefaultDiffLabel
		}
		if same == "" {
			same = DefaultSameLabel
		}
		return CompareRule{Out: s.Output, Left: s.Left, Right: s.Right, DiffLabel: diff, SameLabel: same}, nil

	default:
		return nil, errors.NewAppValidationError(fmt.Sprintf("unknown rule kind %q", s.Kind))
	}
}

// CompileRules compiles specs in order, tagging failures with the rule index.
func CompileRules(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		rule, err := spec.Compile()
		if err != nil {
			return nil, errors.RuleError(i, spec.Kind, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
