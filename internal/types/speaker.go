package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Speaker is a raw speaker record produced by the scrape stage. URL is the unique key
// across every stage.
type Speaker struct {
	URL        string   `json:"url" validate:"required,url"`
	Name       string   `json:"name" validate:"required"`
	Title      string   `json:"title,omitempty"`
	Company    string   `json:"company,omitempty"`
	Bio        string   `json:"bio,omitempty"`
	TalkTitles []string `json:"talk_titles"`
}

// Validate checks required fields.
func (s *Speaker) Validate() error {
	return validate.Struct(s)
}

// CategorizedRecord is a speaker plus its category decision. Exactly one is appended per URL.
type CategorizedRecord struct {
	Speaker
	CompanyCategory Category       `json:"company_category" validate:"required"`
	DecisionSource  DecisionSource `json:"decision_source" validate:"required,oneof=heuristic model"`
	Reason          string         `json:"reason,omitempty"`
	CategorizedAt   int64          `json:"categorized_at"`
	RunID           uuid.UUID      `json:"run_id"`
}

// NewCategorizedRecord stamps a decision onto a speaker.
func NewCategorizedRecord(sp Speaker, category Category, source DecisionSource, reason string, runID uuid.UUID, now time.Time) CategorizedRecord {
	if sp.TalkTitles == nil {
		sp.TalkTitles = []string{}
	}
	return CategorizedRecord{
		Speaker:         sp,
		CompanyCategory: category,
		DecisionSource:  source,
		Reason:          reason,
		CategorizedAt:   now.Unix(),
		RunID:           runID,
	}
}

// Validate checks the speaker fields and the decision.
func (r *CategorizedRecord) Validate() error {
	return validate.Struct(r)
}

// EmailDraft is the structured output of the drafting model call.
type EmailDraft struct {
	Subject string `json:"subject" validate:"required,max=60"`
	Body    string `json:"body" validate:"required"`
}

// Validate checks the draft against its declared shape.
func (d *EmailDraft) Validate() error {
	return validate.Struct(d)
}

// EmailRecord is one line of the email checkpoint.
type EmailRecord struct {
	URL             string   `json:"url"`
	SpeakerName     string   `json:"speaker_name"`
	SpeakerTitle    string   `json:"speaker_title"`
	SpeakerCompany  string   `json:"speaker_company"`
	CompanyCategory Category `json:"company_category"`
	EmailSubject    string   `json:"email_subject"`
	EmailBody       string   `json:"email_body"`
	SpecificDetail  string   `json:"specific_detail,omitempty"`
	DraftedAt       int64    `json:"drafted_at"`
}

// NewEmailRecord joins a categorized record with its draft.
func NewEmailRecord(rec CategorizedRecord, draft EmailDraft, detail string, now time.Time) EmailRecord {
	return EmailRecord{
		URL:             rec.URL,
		SpeakerName:     rec.Name,
		SpeakerTitle:    rec.Title,
		SpeakerCompany:  rec.Company,
		CompanyCategory: rec.CompanyCategory,
		EmailSubject:    draft.Subject,
		EmailBody:       draft.Body,
		SpecificDetail:  detail,
		DraftedAt:       now.Unix(),
	}
}

// ReportRow is one row of the final report.
type ReportRow struct {
	SpeakerName     string
	SpeakerTitle    string
	SpeakerCompany  string
	CompanyCategory Category
	EmailSubject    string
	EmailBody       string
}

// ReportHeader is the fixed column order of the report.
var ReportHeader = []string{
	"Speaker Name",
	"Title",
	"Company",
	"Company Category",
	"Email Subject",
	"Email Body",
}

// Row converts an email record to a report row.
func (e EmailRecord) Row() ReportRow {
	return ReportRow{
		SpeakerName:     e.SpeakerName,
		SpeakerTitle:    e.SpeakerTitle,
		SpeakerCompany:  e.SpeakerCompany,
		CompanyCategory: e.CompanyCategory,
		EmailSubject:    e.EmailSubject,
		EmailBody:       e.EmailBody,
	}
}

// Columns returns the row values in ReportHeader order.
func (r ReportRow) Columns() []string {
	return []string{
		r.SpeakerName,
		r.SpeakerTitle,
		r.SpeakerCompany,
		string(r.CompanyCategory),
		r.EmailSubject,
		r.EmailBody,
	}
}
