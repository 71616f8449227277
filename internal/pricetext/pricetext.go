// Package pricetext parses option labels and quantity-validation alert text
// from the SmartStore cart UI into structured values.
package pricetext

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceSuffixRe   = regexp.MustCompile(`\s*\(([+-]?[\d,]+)원\)\s*`)
	soldOutSuffixRe = regexp.MustCompile(`\s*\(품절\)\s*`)
	stockLimitRe    = regexp.MustCompile(`(\d+)개\s*이하로`)
	colorAlertRe    = regexp.MustCompile(`색상:\s*([^의]+)의`)
	genericAlertRe  = regexp.MustCompile(`([^:]+):\s*([^의]+)의`)
	numberRe        = regexp.MustCompile(`[\d,]+`)
)

// AdditionalPrice extracts the signed surcharge from an option label.
// "매트블랙 (Matt-Black) (+1,800원)" -> 1800, "럭슨 수동초점 (-5,220원)" -> -5220.
// Labels without a price suffix yield 0.
func AdditionalPrice(label string) int {
	m := priceSuffixRe.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// OptionName strips the price and sold-out suffixes from an option label.
// "13번 A35 (바퀴2개) W068 (+6,500원) (품절)" -> "13번 A35 (바퀴2개) W068".
// Two labels differing only in those annotations normalize to the same name.
func OptionName(label string) string {
	result := priceSuffixRe.ReplaceAllString(label, " ")
	result = soldOutSuffixRe.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// StockFromAlert extracts the remaining stock count from a validation alert.
// "...332개 이하로 구매해 주세요." -> (332, true); a sold-out message -> (0, true);
// anything else is not a stock message -> (0, false).
func StockFromAlert(msg string) (int, bool) {
	if m := stockLimitRe.FindStringSubmatch(msg); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, true
		}
	}
	if strings.Contains(msg, "품절") || strings.Contains(msg, "재고 없음") {
		return 0, true
	}
	return 0, false
}

// OptionNameFromAlert extracts the option name embedded in a validation alert.
// "색상: 미드그레이 (Mid-Grey)의 재고가 부족합니다..." -> "미드그레이 (Mid-Grey)".
// Returns "" when the message does not match either known phrasing.
func OptionNameFromAlert(msg string) string {
	if m := colorAlertRe.FindStringSubmatch(msg); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := genericAlertRe.FindStringSubmatch(msg); m != nil {
		return strings.TrimSpace(m[2])
	}
	return ""
}

// IsSoldOutAlert reports whether an alert raised right after selecting an
// option means the option cannot be ordered at all.
func IsSoldOutAlert(msg string) bool {
	return strings.Contains(msg, "품절") || strings.Contains(msg, "구매하실 수 없습니다")
}

// Price parses a displayed price string such as "36,800원" into won.
func Price(s string) (int, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}
