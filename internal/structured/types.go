// Package structured turns stored posting Markdown into structured job
// records with a Gemini model, then splits each result into one file per
// job.
package structured

// Job is one structured job record.
type Job struct {
	JobTitle       string  `json:"job_title" validate:"required"`
	CompanyName    string  `json:"company_name" validate:"required"`
	PostDate       string  `json:"post_date" validate:"omitempty,datetime=2006-01-02"`
	JobDescription *string `json:"job_description"`
	JobRequirement *string `json:"job_requirement"`
}

// Extraction is the model's answer for one Markdown document, which may
// describe several jobs.
type Extraction struct {
	Jobs      []Job `json:"jobs" validate:"dive"`
	TotalJobs int   `json:"total_jobs" validate:"gte=0"`
}
