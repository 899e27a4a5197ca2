package controller

import (
	"community-intelligence-backend/dao"
	"community-intelligence-backend/middleware"
	"community-intelligence-backend/response"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetAssociationProperties(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if !accessibleAssociation(c, id, ErrAssociationMissing) {
		return
	}

	ctx := c.Request.Context()
	association, err := dao.GetAssociationByID(ctx, id)
	if err != nil {
		slog.Error(ErrGetAssociation.Error(), "association_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetAssociation.Error(),
		})
		return
	}
	if association == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, response.Response{
			Msg: ErrAssociationMissing.Error(),
		})
		return
	}

	properties, err := dao.GetPropertiesByAssociationID(ctx, id)
	if err != nil {
		slog.Error(ErrGetProperties.Error(), "association_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetProperties.Error(),
		})
		return
	}

	resp := response.GetPropertiesResponse{
		AssociationID:   association.ID,
		AssociationName: association.Name,
		Properties:      []response.PropertyResponse{},
	}
	for _, p := range properties {
		resp.Properties = append(resp.Properties, response.PropertyResponse{
			ID:           p.ID,
			UnitNumber:   p.UnitNumber,
			Address:      p.Address,
			PropertyType: p.PropertyType,
		})
	}

	c.JSON(http.StatusOK, response.Response{
		Data: resp,
	})
}

func GetAssociationDocuments(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if !accessibleAssociation(c, id, ErrAssociationMissing) {
		return
	}

	documents, err := dao.GetDocumentsByAssociationID(c.Request.Context(), id)
	if err != nil {
		slog.Error(ErrGetDocuments.Error(), "association_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetDocuments.Error(),
		})
		return
	}

	resp := response.GetDocumentsResponse{
		AssociationID: id,
		Documents:     []response.DocumentResponse{},
	}
	for _, d := range documents {
		resp.Documents = append(resp.Documents, response.DocumentResponse{
			ID:         d.ID,
			CreatedAt:  d.CreatedAt,
			PropertyID: d.PropertyID,
			Name:       d.Name,
			FileType:   d.FileType,
			FileSize:   d.FileSize,
			Category:   d.Category,
			FolderPath: d.FolderPath,
		})
	}

	c.JSON(http.StatusOK, response.Response{
		Data: resp,
	})
}

// GetDocumentURLs 返回文档的候选访问地址，前端按顺序尝试
func GetDocumentURLs(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	document, err := dao.GetDocumentByID(ctx, id)
	if err != nil {
		slog.Error(ErrGetDocument.Error(), "document_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetDocument.Error(),
		})
		return
	}
	if document == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, response.Response{
			Msg: ErrDocumentNotFound.Error(),
		})
		return
	}
	if !accessibleAssociation(c, document.AssociationID, ErrDocumentNotFound) {
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.GetDocumentURLsResponse{
			DocumentID: document.ID,
			URLs:       urlResolver.CandidateURLs(ctx, document.ObjectName),
		},
	})
}

// accessibleAssociation 只允许向该协会导入过文档的用户访问，其他用户返回404
func accessibleAssociation(c *gin.Context, associationID uint, notFound error) bool {
	email := c.GetString(middleware.ContextKeyEmail)

	ok, err := dao.UserHasAssociation(c.Request.Context(), email, associationID)
	if err != nil {
		slog.Error(ErrGetAssociation.Error(), "association_id", associationID, "email", email, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetAssociation.Error(),
		})
		return false
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, response.Response{
			Msg: notFound.Error(),
		})
		return false
	}
	return true
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrInvalidID.Error(),
		})
		return 0, false
	}
	return uint(id), true
}
