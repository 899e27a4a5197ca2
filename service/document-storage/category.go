package documentstorage

import (
	"community-intelligence-backend/model"
	"strings"
)

// 按顺序匹配，第一个命中的关键字决定分类
var categoryKeywords = []struct {
	category model.DocumentCategory
	keywords []string
}{
	{model.CategoryLease, []string{"lease"}},
	{model.CategoryInsurance, []string{"insurance"}},
	{model.CategoryMaintenance, []string{"maintenance", "repair"}},
	{model.CategoryInspection, []string{"inspection"}},
	{model.CategoryLegal, []string{"legal", "contract"}},
	{model.CategoryFinancial, []string{"financial", "invoice"}},
	{model.CategoryGoverning, []string{"bylaw", "rule"}},
}

// CategorizeDocument 根据文件名中的关键字判断文档分类
func CategorizeDocument(filename string) model.DocumentCategory {
	name := strings.ToLower(filename)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(name, kw) {
				return c.category
			}
		}
	}
	return model.CategoryGeneral
}
