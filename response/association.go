package response

import (
	"community-intelligence-backend/model"
	"community-intelligence-backend/service/storage"
	"time"
)

type PropertyResponse struct {
	ID           uint   `json:"id"`
	UnitNumber   string `json:"unit_number"`
	Address      string `json:"address"`
	PropertyType string `json:"property_type"`
}

type GetPropertiesResponse struct {
	AssociationID   uint               `json:"association_id"`
	AssociationName string             `json:"association_name"`
	Properties      []PropertyResponse `json:"properties"`
}

type DocumentResponse struct {
	ID         uint                   `json:"id"`
	CreatedAt  time.Time              `json:"created_at"`
	PropertyID uint                   `json:"property_id"`
	Name       string                 `json:"name"`
	FileType   string                 `json:"file_type"`
	FileSize   int64                  `json:"file_size"`
	Category   model.DocumentCategory `json:"category"`
	FolderPath string                 `json:"folder_path"`
}

type GetDocumentsResponse struct {
	AssociationID uint               `json:"association_id"`
	Documents     []DocumentResponse `json:"documents"`
}

type GetDocumentURLsResponse struct {
	DocumentID uint                   `json:"document_id"`
	URLs       []storage.CandidateURL `json:"urls"`
}
