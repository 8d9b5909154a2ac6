package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const promptTemplate = `Extract job information from the following markdown content. The content may contain multiple job postings.

For each job found, extract:
- job_title: The main job title (include both English and Chinese if available)
- company_name: The company name
- post_date: The posting date in YYYY-MM-DD format
- job_description: The job description section (if available)
- job_requirement: All requirements listed for the job (preserve formatting with bullet points)

Return a list of all jobs found in the document. If there's only one job, return a list with one item.
Set total_jobs to the number of jobs found.

Markdown content:
%s
`

// Extractor asks a Generator for structured jobs and validates the answer.
type Extractor struct {
	gen      Generator
	validate *validator.Validate
	logger   *zap.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(gen Generator, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		gen:      gen,
		validate: validator.New(),
		logger:   logger,
	}
}

// Extract returns the jobs described by markdown.
func (e *Extractor) Extract(ctx context.Context, markdown string) (*Extraction, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, fmt.Errorf("markdown is empty")
	}
	raw, err := e.gen.GenerateJSON(ctx, fmt.Sprintf(promptTemplate, markdown))
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	var out Extraction
	if err := json.Unmarshal([]byte(cleanJSONBlock(raw)), &out); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}
	if err := e.validate.Struct(out); err != nil {
		return nil, fmt.Errorf("validate extraction: %w", err)
	}
	if out.TotalJobs != len(out.Jobs) {
		e.logger.Debug("total_jobs disagrees with jobs list",
			zap.Int("total_jobs", out.TotalJobs),
			zap.Int("jobs", len(out.Jobs)),
		)
		out.TotalJobs = len(out.Jobs)
	}
	return &out, nil
}
