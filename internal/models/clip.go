package models

import "gorm.io/gorm"

// ClipStatus represents the lifecycle status of a discovered clip
// candidate, independent of its rendered assets.
type ClipStatus string

const (
	ClipStatusDiscovered ClipStatus = "discovered"
	ClipStatusSelected   ClipStatus = "selected"
	ClipStatusRendering  ClipStatus = "rendering"
	ClipStatusRendered   ClipStatus = "rendered"
	ClipStatusFailed     ClipStatus = "failed"
)

// ClipMetadata holds the descriptive attributes attached to a clip
// candidate by the segmentation collaborator.
type ClipMetadata struct {
	Title    string   `json:"title,omitempty"`
	Caption  string   `json:"caption,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
}

// Clip is a candidate short-form segment of an Episode.
type Clip struct {
	BaseModel

	EpisodeID ULID `gorm:"type:varchar(26);not null;index" json:"episode_id"`

	StartMs    int64      `gorm:"not null" json:"start_ms"`
	EndMs      int64      `gorm:"not null" json:"end_ms"`
	DurationMs int64      `gorm:"not null" json:"duration_ms"`
	Score      float64    `json:"score"`
	Status     ClipStatus `gorm:"not null;size:20;index;default:'discovered'" json:"status"`

	MetadataJSON string `gorm:"column:metadata;type:text" json:"-"`

	Assets []ClipAsset `gorm:"constraint:OnDelete:CASCADE" json:"assets,omitempty"`
}

// TableName returns the table name for Clip.
func (Clip) TableName() string {
	return "clips"
}

// GetMetadata deserializes MetadataJSON.
func (c *Clip) GetMetadata() (ClipMetadata, error) {
	var m ClipMetadata
	if c.MetadataJSON == "" {
		return m, nil
	}
	err := unmarshalJSON(c.MetadataJSON, &m)
	return m, err
}

// SetMetadata serializes m into MetadataJSON.
func (c *Clip) SetMetadata(m ClipMetadata) error {
	s, err := marshalJSON(m)
	if err != nil {
		return err
	}
	c.MetadataJSON = s
	return nil
}

// Validate performs basic validation on the clip.
func (c *Clip) Validate() error {
	if c.EpisodeID.IsZero() {
		return ErrEpisodeIDRequired
	}
	if c.EndMs <= c.StartMs {
		return ErrInvalidTimeRange
	}
	if c.Status == "" {
		c.Status = ClipStatusDiscovered
	}
	c.DurationMs = c.EndMs - c.StartMs
	return nil
}

// BeforeCreate validates the clip and generates its ULID.
func (c *Clip) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return c.Validate()
}

// BeforeUpdate validates the clip before update.
func (c *Clip) BeforeUpdate(tx *gorm.DB) error {
	return c.Validate()
}

// AspectRatio represents a render target aspect ratio for a clip asset.
type AspectRatio string

const (
	AspectRatio16x9 AspectRatio = "16:9"
	AspectRatio9x16 AspectRatio = "9:16"
	AspectRatio1x1  AspectRatio = "1:1"
)

// AssetVariant represents the rendering style applied to a clip asset.
type AssetVariant string

const (
	VariantClean     AssetVariant = "clean"
	VariantSubtitled AssetVariant = "subtitled"
	VariantBranded   AssetVariant = "branded"
)

// AssetStatus represents the lifecycle status of a rendered clip asset.
type AssetStatus string

const (
	AssetStatusPending  AssetStatus = "pending"
	AssetStatusRendered AssetStatus = "rendered"
	AssetStatusFailed   AssetStatus = "failed"
)

// ClipAsset is one rendered output file for a Clip, combining a variant
// and an aspect ratio.
type ClipAsset struct {
	BaseModel

	ClipID ULID `gorm:"type:varchar(26);not null;index" json:"clip_id"`

	Variant     AssetVariant `gorm:"not null;size:20" json:"variant"`
	AspectRatio AspectRatio  `gorm:"not null;size:10" json:"aspect_ratio"`
	OutputPath  string       `gorm:"not null;size:1024" json:"output_path"`
	FileSize    int64        `json:"file_size"`
	Status      AssetStatus  `gorm:"not null;size:20;default:'pending'" json:"status"`
}

// TableName returns the table name for ClipAsset.
func (ClipAsset) TableName() string {
	return "clip_assets"
}

// Validate performs basic validation on the clip asset.
func (a *ClipAsset) Validate() error {
	if a.ClipID.IsZero() {
		return ErrEpisodeIDRequired
	}
	if a.OutputPath == "" {
		return ErrFilePathRequired
	}
	if a.Status == "" {
		a.Status = AssetStatusPending
	}
	return nil
}

// BeforeCreate validates the asset and generates its ULID.
func (a *ClipAsset) BeforeCreate(tx *gorm.DB) error {
	if err := a.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return a.Validate()
}

// BeforeUpdate validates the asset before update.
func (a *ClipAsset) BeforeUpdate(tx *gorm.DB) error {
	return a.Validate()
}
