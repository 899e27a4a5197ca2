package propertymatcher

import (
	"community-intelligence-backend/dao"
	"community-intelligence-backend/model"
	unitparser "community-intelligence-backend/service/unit-parser"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchFuzzy   MatchType = "fuzzy"
	MatchCreated MatchType = "created"
	MatchFailed  MatchType = "failed"
)

const createdConfidence = 0.8

// MatchResult 单个文件的单元匹配结果，仅用于日志与统计
type MatchResult struct {
	Property   *model.Property
	MatchType  MatchType
	Confidence float64
	Reason     string
	Parsed     *unitparser.ParsedUnitInfo
}

// 地址归一化时去除的街道后缀
var streetSuffixes = map[string]struct{}{
	"street": {}, "st": {},
	"road": {}, "rd": {},
	"avenue": {}, "ave": {}, "av": {},
	"drive": {}, "dr": {},
	"lane": {}, "ln": {},
	"court": {}, "ct": {},
	"boulevard": {}, "blvd": {},
	"place": {}, "pl": {},
	"circle": {}, "cir": {},
	"way": {},
	"parkway": {}, "pkwy": {},
	"terrace": {}, "ter": {},
	"highway": {}, "hwy": {},
}

// NormalizeAddress 小写化，去除标点与常见街道后缀，合并空白
func NormalizeAddress(address string) string {
	fields := strings.FieldsFunc(strings.ToLower(address), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	kept := fields[:0]
	for _, f := range fields {
		if _, ok := streetSuffixes[f]; ok {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// FuzzyMatchProperty 依次尝试：单元号精确相等、归一化地址包含、单元号子串包含
// 每一步取第一个满足条件的单元，不对多个候选打分
// 地址包含一步会跳过单元号非空且不同的候选，因此不会出现地址相同、单元号不同仍判为fuzzy的结果
func FuzzyMatchProperty(parsed *unitparser.ParsedUnitInfo, properties []*model.Property) (*model.Property, MatchType) {
	if parsed == nil {
		return nil, MatchFailed
	}
	unit := strings.TrimSpace(parsed.UnitNumber)

	if unit != "" {
		for _, p := range properties {
			if strings.EqualFold(strings.TrimSpace(p.UnitNumber), unit) {
				return p, MatchExact
			}
		}
	}

	if street := NormalizeAddress(parsed.StreetAddress); street != "" {
		for _, p := range properties {
			// 单元号明确不同的记录不能仅凭地址匹配
			if p.UnitNumber != "" && !strings.EqualFold(strings.TrimSpace(p.UnitNumber), unit) {
				continue
			}
			candidate := NormalizeAddress(p.Address)
			if candidate == "" {
				continue
			}
			if strings.Contains(candidate, street) || strings.Contains(street, candidate) {
				if strings.EqualFold(strings.TrimSpace(p.UnitNumber), unit) {
					return p, MatchExact
				}
				return p, MatchFuzzy
			}
		}
	}

	if unit != "" {
		lowerUnit := strings.ToLower(unit)
		for _, p := range properties {
			candidate := strings.ToLower(strings.TrimSpace(p.UnitNumber))
			if candidate == "" {
				continue
			}
			if strings.Contains(candidate, lowerUnit) || strings.Contains(lowerUnit, candidate) {
				return p, MatchFuzzy
			}
		}
	}

	return nil, MatchFailed
}

// FindOrCreateProperty 解析路径并在index中查找单元，找不到时创建新单元并加入index，
// 使同一任务中后续同单元的文件能够匹配到它
func FindOrCreateProperty(ctx context.Context, path string, associationID uint, index *Index) MatchResult {
	parsed := unitparser.ParseUnitFromPath(path)
	if parsed == nil {
		return MatchResult{
			MatchType: MatchFailed,
			Reason:    fmt.Sprintf("could not parse unit from path %q", path),
		}
	}

	if property, matchType := FuzzyMatchProperty(parsed, index.Properties()); property != nil {
		return MatchResult{
			Property:   property,
			MatchType:  matchType,
			Confidence: parsed.Confidence,
			Reason:     fmt.Sprintf("%s match on unit %q via %s", matchType, property.UnitNumber, parsed.Strategy),
			Parsed:     parsed,
		}
	}

	if strings.TrimSpace(parsed.UnitNumber) == "" {
		return failedResult(parsed, "parsed unit number is empty")
	}

	address := parsed.StreetAddress
	if address == "" {
		address = "Unit " + parsed.UnitNumber
	}
	property := &model.Property{
		AssociationID: associationID,
		UnitNumber:    parsed.UnitNumber,
		Address:       address,
		PropertyType:  model.PropertyTypeUnit,
	}
	if err := dao.CreateProperty(ctx, property); err != nil {
		slog.Error("Failed to create property",
			"association_id", associationID,
			"unit_number", parsed.UnitNumber,
			"err", err,
		)
		return failedResult(parsed, fmt.Sprintf("failed to create property: %v", err))
	}
	index.Add(property)

	return MatchResult{
		Property:   property,
		MatchType:  MatchCreated,
		Confidence: createdConfidence,
		Reason:     fmt.Sprintf("created unit %q at %q", property.UnitNumber, property.Address),
		Parsed:     parsed,
	}
}

func failedResult(parsed *unitparser.ParsedUnitInfo, cause string) MatchResult {
	return MatchResult{
		MatchType: MatchFailed,
		Reason: fmt.Sprintf("%s (unit=%q street=%q segment=%q strategy=%s)",
			cause, parsed.UnitNumber, parsed.StreetAddress, parsed.FullAddress, parsed.Strategy),
		Parsed: parsed,
	}
}
