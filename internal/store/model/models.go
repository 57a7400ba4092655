package model

import "gorm.io/datatypes"

// FigureModel is the persisted form of a rendered figure. HTML lives in the
// row (sqlite blob); PNG exports go to disk and only the path is kept.
type FigureModel struct {
	ID             string         `gorm:"column:id;primaryKey"`
	SpecJSON       datatypes.JSON `gorm:"column:spec_json;type:TEXT"`
	Status         string         `gorm:"column:status;index"`
	Error          string         `gorm:"column:error"`
	GeometrySource string         `gorm:"column:geometry_source;index"`
	DataSource     string         `gorm:"column:data_source;index"`
	Title          string         `gorm:"column:title"`

	MatchedRegions    int `gorm:"column:matched_regions"`
	UnmatchedFeatures int `gorm:"column:unmatched_features"`
	UnmatchedRows     int `gorm:"column:unmatched_rows"`

	HTML    []byte `gorm:"column:html"`
	PNGPath string `gorm:"column:png_path"`

	CreatedAtUnix int64 `gorm:"column:created_at"`
	UpdatedAtUnix int64 `gorm:"column:updated_at"`
}

func (FigureModel) TableName() string { return "figures" }
