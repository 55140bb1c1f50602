// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/pdiddy/qca-catalog/pkg/types"
)

// Errors returned when free text does not hold exactly one pattern.
var (
	ErrNoPattern        = errors.New("text does not contain a pattern")
	ErrMultiplePatterns = errors.New("text contains more than one pattern")
)

// Patterns holds the compiled expressions of a types.CommentConfig.
type Patterns struct {
	pattern     *regexp.Regexp
	dataset     *regexp.Regexp
	spec        *regexp.Regexp
	kind        *regexp.Regexp
	combination *regexp.Regexp
	issue       *regexp.Regexp
}

// CompilePatterns compiles cfg. Every expression needs exactly one
// capture group.
func CompilePatterns(cfg types.CommentConfig) (*Patterns, error) {
	var p Patterns
	for _, f := range []struct {
		name string
		expr string
		dst  **regexp.Regexp
	}{
		{"pattern", cfg.Pattern, &p.pattern},
		{"dataset", cfg.Dataset, &p.dataset},
		{"spec", cfg.Spec, &p.spec},
		{"type", cfg.Type, &p.kind},
		{"combination", cfg.Combination, &p.combination},
		{"issue_smiles", cfg.IssueSMILES, &p.issue},
	} {
		re, err := regexp.Compile(f.expr)
		if err != nil {
			return nil, fmt.Errorf("comment expression %s: %w", f.name, err)
		}
		if re.NumSubexp() != 1 {
			return nil, fmt.Errorf("comment expression %s: want one capture group, have %d", f.name, re.NumSubexp())
		}
		*f.dst = re
	}
	return &p, nil
}

// Request is a search parsed from a comment.
type Request struct {
	Pattern  string              `json:"pattern" yaml:"pattern"`
	Criteria types.QueryCriteria `json:"criteria" yaml:"criteria"`
}

// Args renders the request as search command arguments.
func (r Request) Args() []string {
	args := []string{"--pattern", r.Pattern}
	for _, v := range r.Criteria.Datasets {
		args = append(args, "--dataset", v)
	}
	for _, v := range r.Criteria.Specifications {
		args = append(args, "--spec", v)
	}
	for _, v := range r.Criteria.RecordTypes {
		args = append(args, "--type", string(v))
	}
	for _, v := range r.Criteria.Combinations {
		args = append(args, "--combination", v)
	}
	return args
}

func captures(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

func single(re *regexp.Regexp, text string) (string, error) {
	found := captures(re, text)
	switch len(found) {
	case 0:
		return "", ErrNoPattern
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("%w: %q", ErrMultiplePatterns, found)
}

// ParseComment extracts a search request from discussion-comment text.
// The text must hold exactly one pattern; criteria flags may repeat.
func ParseComment(text string, p *Patterns) (Request, error) {
	pattern, err := single(p.pattern, text)
	if err != nil {
		return Request{}, err
	}
	req := Request{Pattern: pattern}
	req.Criteria.Datasets = captures(p.dataset, text)
	req.Criteria.Specifications = captures(p.spec, text)
	for _, v := range captures(p.kind, text) {
		kind, err := types.RecordTypeFromName(v)
		if err != nil {
			return Request{}, err
		}
		req.Criteria.RecordTypes = append(req.Criteria.RecordTypes, kind)
	}
	req.Criteria.Combinations = captures(p.combination, text)
	return req, nil
}

// ParseIssue extracts the single "smiles:" pattern of an issue body.
func ParseIssue(text string, p *Patterns) (string, error) {
	return single(p.issue, text)
}
