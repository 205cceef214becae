package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/ai"
	"github.com/hrvibe/hrvibe-core/internal/logger"
	"github.com/hrvibe/hrvibe-core/internal/utils"
)

const (
	providerName        = "gemini"
	systemInstruction   = "Ты — профессиональный сорсер резюме."
	defaultMaxLogLength = 200
	noFeedback          = "нет"
)

//go:embed vacancy_prompt.md
var vacancyPromptTemplate string

//go:embed resume_prompt.md
var resumePromptTemplate string

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Analyzer implements ai.Analyzer on top of Gemini.
type Analyzer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Analyzer = (*Analyzer)(nil)

func NewAnalyzer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Analyzer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Analyzer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (a *Analyzer) AnalyzeVacancy(ctx context.Context, vacancy json.RawMessage, feedback string) (*ai.SourcingCriteria, error) {
	if len(vacancy) == 0 {
		return nil, fmt.Errorf("vacancy description is required")
	}

	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		feedback = noFeedback
	}

	prompt := fillTemplate(vacancyPromptTemplate, map[string]string{
		"{{VACANCY_JSON}}": string(vacancy),
		"{{FEEDBACK}}":     feedback,
	})

	raw, err := a.generate(ctx, "vacancy", prompt)
	if err != nil {
		return nil, err
	}

	return parseCriteria(raw)
}

func (a *Analyzer) AnalyzeResume(ctx context.Context, vacancy json.RawMessage, criteria *ai.SourcingCriteria, resume json.RawMessage) (*ai.ResumeAssessment, error) {
	if len(resume) == 0 {
		return nil, fmt.Errorf("resume is required")
	}
	if criteria.IsEmpty() {
		return nil, fmt.Errorf("sourcing criteria are required")
	}

	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		return nil, fmt.Errorf("marshal sourcing criteria: %w", err)
	}

	prompt := fillTemplate(resumePromptTemplate, map[string]string{
		"{{VACANCY_JSON}}":  string(vacancy),
		"{{CRITERIA_JSON}}": string(criteriaJSON),
		"{{RESUME_JSON}}":   string(resume),
	})

	raw, err := a.generate(ctx, "resume", prompt)
	if err != nil {
		return nil, err
	}

	return parseAssessment(raw)
}

func (a *Analyzer) generate(ctx context.Context, subject, prompt string) (string, error) {
	fields := logger.AIFields(providerName, a.generator.Model())

	a.logger.Debug("gemini generate content request", append(fields,
		zap.String("subject", subject),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)...)

	raw, err := a.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return "", fmt.Errorf("analyze %s: %w", subject, err)
	}

	a.logger.Debug("gemini generate content response", append(fields,
		zap.String("subject", subject),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)...)

	return raw, nil
}

func fillTemplate(template string, values map[string]string) string {
	for placeholder, value := range values {
		template = strings.ReplaceAll(template, placeholder, value)
	}
	return template
}

func parseCriteria(raw string) (*ai.SourcingCriteria, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	requirements, _ := data["requirements"].(map[string]any)
	if requirements == nil {
		// Some answers skip the wrapping object.
		requirements = data
	}

	criteria := &ai.SourcingCriteria{
		Must:       coerceStrings(requirements["must"]),
		NiceToHave: coerceStrings(requirements["nice_to_have"]),
	}
	if criteria.IsEmpty() {
		return nil, fmt.Errorf("gemini response has no requirements")
	}

	return criteria, nil
}

func parseAssessment(raw string) (*ai.ResumeAssessment, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	score := coerceFloat(data["final_score"])
	if math.IsNaN(score) {
		return nil, fmt.Errorf("gemini response has no final_score")
	}

	assessment := &ai.ResumeAssessment{
		FinalScore:     ai.ClampScore(int(math.Round(score))),
		Recommendation: coerceString(data["recommendation"]),
		Raw:            raw,
	}

	if compliance, ok := data["requirements_compliance"].(map[string]any); ok {
		assessment.Compliance = ai.Compliance{
			Matched:   coerceStrings(compliance["matched"]),
			Missing:   coerceStrings(compliance["missing"]),
			Attention: coerceStrings(compliance["attention"]),
		}
	}

	return assessment, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// coerceStrings accepts a list of values or a single string.
func coerceStrings(v any) []string {
	switch val := v.(type) {
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				result = append(result, s)
			}
		}
		return result
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	}
	return nil
}
