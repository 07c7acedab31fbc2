package report

import "time"

// Category is a report reason drawn from the fixed set the intake accepts.
type Category string

// Category values accepted at submission time.
const (
	CategorySexual         Category = "sexual"
	CategoryViolent        Category = "violent"
	CategoryHateful        Category = "hateful"
	CategoryHarassment     Category = "harassment"
	CategoryHarmful        Category = "harmful"
	CategoryMisinformation Category = "misinformation"
	CategoryChild          Category = "child"
	CategoryTerrorism      Category = "terrorism"
	CategorySpam           Category = "spam"
)

// categoryOrder fixes the presentation order for forms and listings.
var categoryOrder = []Category{
	CategorySexual,
	CategoryViolent,
	CategoryHateful,
	CategoryHarassment,
	CategoryHarmful,
	CategoryMisinformation,
	CategoryChild,
	CategoryTerrorism,
	CategorySpam,
}

// categoryLabels maps category values to the reason text shown to users.
var categoryLabels = map[Category]string{
	CategorySexual:         "Sexual content",
	CategoryViolent:        "Violent or repulsive content",
	CategoryHateful:        "Hateful or abusive content",
	CategoryHarassment:     "Harassment or bullying",
	CategoryHarmful:        "Harmful or dangerous acts",
	CategoryMisinformation: "Misinformation",
	CategoryChild:          "Child abuse",
	CategoryTerrorism:      "Promotes terrorism",
	CategorySpam:           "Spam or misleading",
}

// Categories returns every accepted category in presentation order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// Valid reports whether the category is a member of the accepted set.
// The empty "no selection" sentinel is not a member.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the reason text for the category, or the raw value when
// the category is unknown.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Report is the durable record persisted for each accepted submission.
// Records are append-only: ids increase monotonically and no field is
// ever mutated after Create.
type Report struct {
	ID             int64     `json:"id"`
	VideoURL       string    `json:"video_url"`
	Category       Category  `json:"report_category"`
	Details        string    `json:"report_details,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	ScreenshotPath string    `json:"screenshot_path,omitempty"`
}

// Submission carries the raw form input handed to the pipeline.
type Submission struct {
	VideoURL string `json:"video_url"`
	Category string `json:"report_category"`
	Details  string `json:"report_details,omitempty"`
}

// NewReport carries the validated fields for one Store.Create call. The
// store assigns ID and Timestamp.
type NewReport struct {
	VideoURL       string
	Category       Category
	Details        string
	ScreenshotPath string
}

// Field identifies a submission field in validation feedback.
type Field string

// Submission fields referenced by validation errors.
const (
	FieldVideoURL Field = "video_url"
	FieldCategory Field = "report_category"
)

// ValidationResult reports per-field validation feedback.
type ValidationResult struct {
	OK          bool
	FieldErrors map[Field]string
}

// CaptureResult is the outcome of the capturing phase of one run. Exactly
// one of ArtifactPath and FailureReason is set.
type CaptureResult struct {
	OK            bool
	ArtifactPath  string
	Checksum      string
	FailureReason string
}

// ProbeResult carries what the reachability probe learned about the page.
type ProbeResult struct {
	StatusCode int
	Title      string
}

// Status is the terminal state of one pipeline run.
type Status string

// Terminal pipeline states. Every run ends in exactly one of these.
const (
	StatusRejected  Status = "rejected"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result is returned to the caller after one pipeline run. FieldErrors is
// set only for StatusRejected, Report only for StatusSucceeded, and
// FailureReason only for StatusFailed.
type Result struct {
	Status        Status           `json:"status"`
	FieldErrors   map[Field]string `json:"field_errors,omitempty"`
	Report        *Report          `json:"report,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
}

// ListOrder selects the ordering of a full report listing.
type ListOrder string

// Listing orders. Ascending id matches submission order; descending is
// used for recent-first displays.
const (
	OrderAscending  ListOrder = "asc"
	OrderDescending ListOrder = "desc"
)

// CreatedEvent describes a persisted report for notification consumers.
type CreatedEvent struct {
	Report        Report `json:"report"`
	CategoryLabel string `json:"category_label"`
	Checksum      string `json:"artifact_checksum,omitempty"`
	PageTitle     string `json:"page_title,omitempty"`
}
