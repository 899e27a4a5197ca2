package propertymatcher

import (
	"community-intelligence-backend/model"
	"strings"
)

// Index 一次导入任务内已知的单元，按加入顺序保存，同时按单元号建立索引
// 只属于一个导入任务，不在任务之间共享
type Index struct {
	properties []*model.Property
	byUnit     map[string]*model.Property
}

func NewIndex(properties []model.Property) *Index {
	idx := &Index{
		properties: make([]*model.Property, 0, len(properties)),
		byUnit:     make(map[string]*model.Property, len(properties)),
	}
	for i := range properties {
		p := properties[i]
		idx.Add(&p)
	}
	return idx
}

// Add 追加单元，同一单元号只保留最早加入的索引项
func (idx *Index) Add(p *model.Property) {
	idx.properties = append(idx.properties, p)
	key := unitKey(p.UnitNumber)
	if key == "" {
		return
	}
	if _, ok := idx.byUnit[key]; !ok {
		idx.byUnit[key] = p
	}
}

func (idx *Index) Lookup(unitNumber string) *model.Property {
	return idx.byUnit[unitKey(unitNumber)]
}

func (idx *Index) Properties() []*model.Property {
	return idx.properties
}

func (idx *Index) Len() int {
	return len(idx.properties)
}

func unitKey(unitNumber string) string {
	return strings.ToLower(strings.TrimSpace(unitNumber))
}
