package models

// Video is a Dinor TV episode.
type Video struct {
	ContentBase
	Engagement
	Title        string `gorm:"size:255;not null" json:"title" validate:"required,max=255"`
	Description  string `gorm:"type:text" json:"description"`
	VideoURL     string `gorm:"size:1024;not null" json:"video_url" validate:"required,max=1024"`
	ThumbnailURL string `gorm:"size:1024" json:"thumbnail"`
	Duration     int    `json:"duration"`
}

func (*Video) TableName() string { return KindVideo.Table() }

func (*Video) Kind() ContentKind { return KindVideo }

func (v *Video) Snapshot() map[string]any {
	return v.ContentBase.snapshot(map[string]any{
		"title":       v.Title,
		"description": v.Description,
		"url":         v.VideoURL,
	})
}
