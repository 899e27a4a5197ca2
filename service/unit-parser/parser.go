package unitparser

import (
	"regexp"
	"strings"
)

// 解析策略名称
const (
	StrategyAddressUnit      = "address_unit"
	StrategyAddressApartment = "address_apartment"
	StrategyUnitOnly         = "unit_only"
	StrategyBuildingUnit     = "building_unit"
)

// ParsedUnitInfo 从文件路径中解析出的单元信息，仅用于匹配，不持久化
type ParsedUnitInfo struct {
	UnitNumber    string `json:"unit_number"`
	StreetAddress string `json:"street_address"`

	// 命中策略的原始路径片段
	FullAddress string `json:"full_address"`

	Building   string  `json:"building,omitempty"`
	Confidence float64 `json:"confidence"`
	Strategy   string  `json:"strategy"`
}

type strategy struct {
	name       string
	confidence float64
	match      func(segment string) *ParsedUnitInfo
}

// 单元号：字母数字开头，可包含连字符，例如 301、5A、B-12
const unitToken = `([A-Za-z0-9][A-Za-z0-9-]*)`

var (
	knownExtensionRegex = regexp.MustCompile(`(?i)\.(pdf|docx?|xlsx?|xlsm|csv|txt|rtf|odt|ods|pptx?|jpe?g|png|gif|bmp|heic|tiff?|msg|eml|html?|xml|json|zip)$`)

	// 街道地址以门牌号开头
	addressUnitRegex      = regexp.MustCompile(`(?i)^(\d+\S*\s+.+?)[,\s]+unit(?:\s+|\s*#\s*)` + unitToken)
	addressApartmentRegex = regexp.MustCompile(`(?i)^(\d+\S*\s+.+?)[,\s]+(?:apt\.?|apartment)(?:\s+|\s*#\s*)` + unitToken)
	unitOnlyRegex         = regexp.MustCompile(`(?i)^unit(?:\s+|\s*#\s*)` + unitToken + `$`)
	bareUnitRegex         = regexp.MustCompile(`^#?([A-Za-z]?\d+[A-Za-z]?(?:-[A-Za-z0-9]+)?)$`)
	buildingUnitRegex     = regexp.MustCompile(`(?i)\b(?:building|bldg\.?)\s+([A-Za-z0-9]+)\b.*?\bunit(?:\s+|\s*#\s*)` + unitToken)

	bareFilenameRegex = regexp.MustCompile(`^[^.]+\.[A-Za-z0-9]{1,5}$`)
)

// 策略按顺序尝试，第一个命中的片段即为结果，不比较置信度
var strategies = []strategy{
	{
		name:       StrategyAddressUnit,
		confidence: 0.95,
		match:      addressMatcher(addressUnitRegex),
	},
	{
		name:       StrategyAddressApartment,
		confidence: 0.90,
		match:      addressMatcher(addressApartmentRegex),
	},
	{
		name:       StrategyUnitOnly,
		confidence: 0.60,
		match:      matchUnitOnly,
	},
	{
		name:       StrategyBuildingUnit,
		confidence: 0.70,
		match:      matchBuildingUnit,
	},
}

// ParseUnitFromPath 从类似 "AssociationName/1490 Rusk Rd. Unit 301/lease.pdf" 的路径中
// 解析单元号与街道地址，无法解析时返回nil
func ParseUnitFromPath(path string) *ParsedUnitInfo {
	for _, segment := range SplitSegments(StripKnownExtension(path)) {
		for _, s := range strategies {
			info := s.match(segment)
			if info == nil {
				continue
			}
			info.FullAddress = segment
			info.Confidence = s.confidence
			info.Strategy = s.name
			return info
		}
	}
	return nil
}

// ExtractAssociationName 取路径的第一段作为协会名称
// 第一段本身像文件名（name.ext）时返回空字符串
func ExtractAssociationName(path string) string {
	segments := SplitSegments(path)
	if len(segments) == 0 {
		return ""
	}
	first := segments[0]
	if bareFilenameRegex.MatchString(first) {
		return ""
	}
	return first
}

// SplitSegments 按 / 和 \ 切分路径，去除空白片段
func SplitSegments(path string) []string {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func StripKnownExtension(path string) string {
	return knownExtensionRegex.ReplaceAllString(path, "")
}

func addressMatcher(re *regexp.Regexp) func(string) *ParsedUnitInfo {
	return func(segment string) *ParsedUnitInfo {
		m := re.FindStringSubmatch(segment)
		if m == nil {
			return nil
		}
		return &ParsedUnitInfo{
			StreetAddress: cleanAddress(m[1]),
			UnitNumber:    m[2],
		}
	}
}

func matchUnitOnly(segment string) *ParsedUnitInfo {
	if m := unitOnlyRegex.FindStringSubmatch(segment); m != nil {
		return &ParsedUnitInfo{UnitNumber: m[1]}
	}
	if m := bareUnitRegex.FindStringSubmatch(segment); m != nil {
		return &ParsedUnitInfo{UnitNumber: m[1]}
	}
	return nil
}

func matchBuildingUnit(segment string) *ParsedUnitInfo {
	m := buildingUnitRegex.FindStringSubmatch(segment)
	if m == nil {
		return nil
	}
	return &ParsedUnitInfo{
		Building:   m[1],
		UnitNumber: m[2],
	}
}

func cleanAddress(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, " ,-#"))
}
