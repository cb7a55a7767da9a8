// Package heuristic implements the local fallback scorer used when the
// remote classifier is unreachable or intentionally bypassed. Scoring is
// additive across independent keyword signals and deliberately conservative:
// every contributing signal is individually reported so an offline verdict
// stays explainable.
package heuristic

import (
	"fmt"
	"strings"

	"github.com/phantomsec/threatwatch/internal/models"
	"github.com/phantomsec/threatwatch/internal/textnorm"
)

// Signal weights, capped at 1.0 total. A score of 0.5 or more is a threat.
const (
	weightURL       = 0.40
	weightUrgency   = 0.20
	weightFinancial = 0.20
	weightShortener = 0.15
	weightGeneric   = 0.10

	threatThreshold = 0.5
)

// Scorer holds the keyword lists for each signal category.
type Scorer struct {
	urgencyKeywords   []string
	financialKeywords []string
	shortenerDomains  []string
	genericKeywords   []string
}

// NewScorer creates a scorer with the default keyword lists. The corpus is
// Korean SMS and notification text, so both Korean and English terms appear.
func NewScorer() *Scorer {
	return &Scorer{
		urgencyKeywords: []string{
			"immediately", "act now", "suspended", "verify now", "urgent",
			"긴급", "즉시", "지금 바로", "정지", "마감",
		},
		financialKeywords: []string{
			"account number", "password", "one-time code", "refund", "bank",
			"계좌", "비밀번호", "인증번호", "환급", "송금", "입금",
		},
		shortenerDomains: []string{
			"bit.ly", "tinyurl.com", "t.co", "goo.gl", "is.gd", "buff.ly",
			"han.gl", "me2.do", "url.kr", "vo.la",
		},
		genericKeywords: []string{
			"click", "unsubscribe", "won", "confirm", "prize", "free",
			"클릭", "수신거부", "당첨", "확인", "무료",
		},
	}
}

// Score produces an approximate verdict for the given text without a network
// round-trip. Indicators list every signal that fired, in evaluation order,
// as a machine-readable tag plus a human-readable reason.
func (s *Scorer) Score(text string) models.ScanVerdict {
	content := strings.ToLower(text)
	urls := textnorm.ExtractURLs(text)

	var score float64
	var indicators []string

	if len(urls) > 0 {
		score += weightURL
		if len(urls) > 1 {
			indicators = append(indicators, fmt.Sprintf("multiple_urls: message contains %d links", len(urls)))
		} else {
			indicators = append(indicators, "contains_urls: message contains a link")
		}
	}

	if kw := firstMatch(content, s.urgencyKeywords); kw != "" {
		score += weightUrgency
		indicators = append(indicators, fmt.Sprintf("urgency: urgency-pressure wording (%q)", kw))
	}

	if kw := firstMatch(content, s.financialKeywords); kw != "" {
		score += weightFinancial
		indicators = append(indicators, fmt.Sprintf("financial: financial or credential wording (%q)", kw))
	}

	if d := s.shortenerDomain(content); d != "" {
		score += weightShortener
		indicators = append(indicators, fmt.Sprintf("link_shortener: known link-shortener domain (%s)", d))
	}

	if kw := firstMatch(content, s.genericKeywords); kw != "" {
		score += weightGeneric
		indicators = append(indicators, fmt.Sprintf("suspicious_keyword: %s", kw))
	}

	if score > 1.0 {
		score = 1.0
	}

	isThreat := score >= threatThreshold

	verdict := models.ScanVerdict{
		IsThreat:    isThreat,
		Confidence:  score,
		Indicators:  indicators,
		RiskLevel:   riskLevel(score),
		Approximate: true,
	}

	if isThreat {
		verdict.ThreatCategory = s.category(content)
		verdict.SuspiciousURLs = urls
	}

	return verdict
}

func (s *Scorer) category(content string) string {
	if firstMatch(content, s.financialKeywords) != "" {
		return "financial"
	}
	return "scam"
}

func (s *Scorer) shortenerDomain(content string) string {
	for _, d := range s.shortenerDomains {
		if strings.Contains(content, d) {
			return d
		}
	}
	return ""
}

func firstMatch(content string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			return kw
		}
	}
	return ""
}

func riskLevel(score float64) string {
	switch {
	case score >= 0.75:
		return "HIGH"
	case score >= threatThreshold:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
