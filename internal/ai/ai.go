// Package ai holds the provider independent types of vacancy and resume
// analysis.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	MinScore = 0
	MaxScore = 10
)

// SourcingCriteria are the requirements a resume is screened against.
type SourcingCriteria struct {
	Must       []string
	NiceToHave []string
}

type criteriaDocument struct {
	Requirements struct {
		Must       []string `json:"must"`
		NiceToHave []string `json:"nice_to_have"`
	} `json:"requirements"`
}

func (c SourcingCriteria) MarshalJSON() ([]byte, error) {
	var doc criteriaDocument
	doc.Requirements.Must = nonNil(c.Must)
	doc.Requirements.NiceToHave = nonNil(c.NiceToHave)
	return json.Marshal(doc)
}

func (c *SourcingCriteria) UnmarshalJSON(data []byte) error {
	var doc criteriaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	c.Must = doc.Requirements.Must
	c.NiceToHave = doc.Requirements.NiceToHave
	return nil
}

func (c *SourcingCriteria) IsEmpty() bool {
	return c == nil || (len(c.Must) == 0 && len(c.NiceToHave) == 0)
}

// Markdown renders the criteria for a Telegram message.
func (c *SourcingCriteria) Markdown() string {
	var b strings.Builder
	b.WriteString("*Обязательно*\n")
	for _, item := range c.Must {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	b.WriteString("\n*Желательно*:\n")
	for _, item := range c.NiceToHave {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return strings.TrimRight(b.String(), "\n")
}

type Compliance struct {
	Matched   []string `json:"matched"`
	Missing   []string `json:"missing"`
	Attention []string `json:"attention"`
}

// ResumeAssessment is the outcome of a resume analysis.
type ResumeAssessment struct {
	FinalScore     int        `json:"final_score"`
	Recommendation string     `json:"recommendation"`
	Compliance     Compliance `json:"requirements_compliance"`
	Raw            string     `json:"-"`
}

// Passed reports whether the score reaches threshold.
func (a *ResumeAssessment) Passed(threshold int) bool {
	return a != nil && a.FinalScore >= threshold
}

// ClampScore keeps a score inside MinScore..MaxScore.
func ClampScore(score int) int {
	switch {
	case score < MinScore:
		return MinScore
	case score > MaxScore:
		return MaxScore
	default:
		return score
	}
}

// Analyzer turns raw hh.ru documents into criteria and assessments.
type Analyzer interface {
	AnalyzeVacancy(ctx context.Context, vacancy json.RawMessage, feedback string) (*SourcingCriteria, error)
	AnalyzeResume(ctx context.Context, vacancy json.RawMessage, criteria *SourcingCriteria, resume json.RawMessage) (*ResumeAssessment, error)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
