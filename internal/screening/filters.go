package screening

import (
	"context"
	"strconv"

	"github.com/hrvibe/hrvibe-core/internal/store"
)

const (
	NameResumeAttached = "resume_attached"
	NameResumeMissing  = "resume_missing"
	NameHasResume      = "has_resume"
	NameSortingStatus  = "sorting_status"
	NameMinScore       = "min_score"
	NameVideoReceived  = "video_received"
	NameNotRecommended = "not_recommended"
)

// predicateFilter keeps the negotiations keep returns true for.
type predicateFilter struct {
	name    string
	keep    func(*store.Negotiation) bool
	details map[string]string

	enabled bool
	reason  string
}

func newPredicate(name string, keep func(*store.Negotiation) bool, details map[string]string) *predicateFilter {
	return &predicateFilter{name: name, keep: keep, details: details, enabled: true}
}

func (f *predicateFilter) Name() string { return f.name }

func (f *predicateFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *predicateFilter) IsEnabled() bool { return f.enabled }

func (f *predicateFilter) Apply(_ context.Context, items []*store.Negotiation) ([]*store.Negotiation, Step, error) {
	kept := make([]*store.Negotiation, 0, len(items))
	for _, n := range items {
		if n != nil && f.keep(n) {
			kept = append(kept, n)
		}
	}

	return kept, Step{Initial: len(items), Dropped: len(items) - len(kept), Left: len(kept)}, nil
}

func (f *predicateFilter) Status() Status {
	return Status{Name: f.name, Enabled: f.enabled, Reason: f.reason, Details: f.details}
}

// ResumeAttached keeps negotiations that came with a resume.
func ResumeAttached() Filter {
	return newPredicate(NameResumeAttached, func(n *store.Negotiation) bool {
		return n.ResumeID != ""
	}, nil)
}

// ResumeMissing keeps negotiations whose resume was not fetched yet.
func ResumeMissing() Filter {
	return newPredicate(NameResumeMissing, func(n *store.Negotiation) bool {
		return len(n.ResumeJSON) == 0
	}, nil)
}

// HasResume keeps negotiations with a fetched resume.
func HasResume() Filter {
	return newPredicate(NameHasResume, func(n *store.Negotiation) bool {
		return len(n.ResumeJSON) > 0
	}, nil)
}

func SortingStatus(status string) Filter {
	return newPredicate(NameSortingStatus, func(n *store.Negotiation) bool {
		return n.SortingStatus == status
	}, map[string]string{"status": status})
}

// MinScore keeps scored negotiations with a score of at least score.
func MinScore(score int) Filter {
	return newPredicate(NameMinScore, func(n *store.Negotiation) bool {
		return n.Scored && n.AIScore >= score
	}, map[string]string{"score": strconv.Itoa(score)})
}

// VideoReceived keeps negotiations where the applicant recorded a video.
func VideoReceived() Filter {
	return newPredicate(NameVideoReceived, func(n *store.Negotiation) bool {
		return n.VideoPath != ""
	}, nil)
}

func NotRecommended() Filter {
	return newPredicate(NameNotRecommended, func(n *store.Negotiation) bool {
		return !n.Recommended
	}, nil)
}

// ForFetch selects negotiations whose resume has to be downloaded.
func ForFetch() []Filter {
	return []Filter{ResumeAttached(), ResumeMissing()}
}

// ForAnalysis selects fetched resumes that were not analysed yet.
func ForAnalysis() []Filter {
	return []Filter{HasResume(), SortingStatus(store.SortingNew)}
}

// ForRecommendation selects passed candidates that can be shown to the
// manager. Without requireVideo the video step is kept but disabled.
func ForRecommendation(minScore int, requireVideo bool) []Filter {
	steps := []Filter{
		SortingStatus(store.SortingPassed),
		MinScore(minScore),
		VideoReceived(),
		NotRecommended(),
	}
	if !requireVideo {
		DisableByName(steps, NameVideoReceived, "video is not required")
	}
	return steps
}
