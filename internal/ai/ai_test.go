package ai

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSourcingCriteriaJSON(t *testing.T) {
	criteria := SourcingCriteria{Must: []string{"Go"}}

	data, err := json.Marshal(criteria)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(data); got != `{"requirements":{"must":["Go"],"nice_to_have":[]}}` {
		t.Fatalf("unexpected document %s", got)
	}

	var decoded SourcingCriteria
	if err := json.Unmarshal([]byte(`{"requirements":{"must":["SQL"],"nice_to_have":["Kafka","k8s"]}}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Must) != 1 || decoded.Must[0] != "SQL" || len(decoded.NiceToHave) != 2 {
		t.Fatalf("unexpected criteria %+v", decoded)
	}
}

func TestSourcingCriteriaMarkdown(t *testing.T) {
	criteria := &SourcingCriteria{Must: []string{"Go", "PostgreSQL"}, NiceToHave: []string{"Kafka"}}

	want := "*Обязательно*\n- Go\n- PostgreSQL\n\n*Желательно*:\n- Kafka"
	if got := criteria.Markdown(); got != want {
		t.Fatalf("unexpected markdown:\n%s", got)
	}

	var empty *SourcingCriteria
	if !empty.IsEmpty() {
		t.Fatalf("nil criteria must be empty")
	}
	if !strings.Contains((&SourcingCriteria{}).Markdown(), "Желательно") {
		t.Fatalf("expected headers for empty criteria")
	}
}

func TestClampScore(t *testing.T) {
	cases := map[int]int{-3: 0, 0: 0, 7: 7, 10: 10, 42: 10}
	for in, want := range cases {
		if got := ClampScore(in); got != want {
			t.Fatalf("ClampScore(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestResumeAssessmentPassed(t *testing.T) {
	var nilAssessment *ResumeAssessment
	if nilAssessment.Passed(0) {
		t.Fatalf("nil assessment must not pass")
	}

	a := &ResumeAssessment{FinalScore: 7}
	if !a.Passed(7) || a.Passed(8) {
		t.Fatalf("unexpected threshold behaviour for score 7")
	}
}
