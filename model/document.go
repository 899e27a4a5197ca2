package model

import "time"

type DocumentCategory string

const (
	CategoryLease       DocumentCategory = "lease"
	CategoryInsurance   DocumentCategory = "insurance"
	CategoryMaintenance DocumentCategory = "maintenance"
	CategoryInspection  DocumentCategory = "inspection"
	CategoryLegal       DocumentCategory = "legal"
	CategoryFinancial   DocumentCategory = "financial"
	CategoryGoverning   DocumentCategory = "governing"
	CategoryGeneral     DocumentCategory = "general"
)

// Document 每个导入文件对应一条记录，只创建不更新
// 建立联合索引 (association_id, created_at)
type Document struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time `gorm:"not null;index:idx_doc_association_created" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
	AssociationID uint      `gorm:"not null;index:idx_doc_association_created" json:"association_id"`
	PropertyID    uint      `gorm:"not null;index" json:"property_id"`
	Name          string    `gorm:"not null" json:"name"`

	// 文件访问地址与在OSS上的完整路径（不包含bucket名称）
	URL        string `gorm:"not null" json:"url"`
	ObjectName string `gorm:"not null" json:"object_name"`

	FileType   string           `gorm:"not null" json:"file_type"`
	FileSize   int64            `gorm:"not null" json:"file_size"`
	Category   DocumentCategory `gorm:"not null;default:general" json:"category"`
	FolderPath string           `json:"folder_path"`
	IsPublic   bool             `gorm:"not null;default:false" json:"is_public"`

	// 产生该文档的导入任务
	ImportJobID string `gorm:"index" json:"import_job_id"`
}

func (Document) TableName() string {
	return "documents"
}
