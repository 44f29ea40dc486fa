package models

// ReportRequest is the query of GET /api/report.
type ReportRequest struct {
	Token        string `query:"token" json:"token" validate:"required,max=128"`
	Capabilities string `query:"capabilities" json:"capabilities" validate:"max=256"`
	DeadlineMs   int    `query:"deadline_ms" json:"deadline_ms" default:"0" validate:"gte=0,lte=60000"`
}
