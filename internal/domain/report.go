package domain

import "time"

// AssetStatus is the completeness snapshot attached to audit log entries
// and to the final generation report.
type AssetStatus struct {
	IsComplete               bool `json:"is_complete"`
	TotalProducts            int  `json:"total_products"`
	ProductsGeneratedThisRun int  `json:"products_generated_this_run"`
	ProductsStillPending     int  `json:"products_still_pending"`
}

// GenerationReport is returned to the caller after a pipeline run.
type GenerationReport struct {
	CampaignID        string      `json:"campaign_id"`
	Status            BriefStatus `json:"status"`
	ProductsProcessed int         `json:"products_processed"`
	ProductsGenerated int         `json:"products_generated"`
	TotalCreatives    int         `json:"total_creatives"`
	GeneratedAt       time.Time   `json:"generated_at"`
	DurationSeconds   float64     `json:"duration_seconds"`
	AssetStatus       AssetStatus `json:"asset_status"`
}
