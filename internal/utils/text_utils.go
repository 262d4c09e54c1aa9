package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var statusAliases = map[string]core.EmploymentStatus{
	"active":       core.StatusActive,
	"regular":      core.StatusActive,
	"permanent":    core.StatusActive,
	"probation":    core.StatusProbation,
	"probationary": core.StatusProbation,
	"on probation": core.StatusProbation,
	"separated":    core.StatusSeparated,
	"resigned":     core.StatusSeparated,
	"left":         core.StatusSeparated,
	"terminated":   core.StatusTerminated,
	"dismissed":    core.StatusTerminated,
}

// TextProcessor provides utilities for normalizing source text
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// Normalize returns text as valid NFKC UTF-8 with collapsed whitespace
func (tp *TextProcessor) Normalize(text string) string {
	text = tp.SanitizeUTF8(text)
	text = norm.NFKC.String(text)
	return strings.Join(strings.Fields(text), " ")
}

// Key returns a case-folded form of text for header and status matching
func (tp *TextProcessor) Key(text string) string {
	// Casers are stateful, so each call gets its own
	return cases.Fold().String(tp.Normalize(text))
}

// ParseStatus maps a free-text employee status to a known status
func (tp *TextProcessor) ParseStatus(text string) core.EmploymentStatus {
	key := tp.Key(text)
	if status, ok := statusAliases[key]; ok {
		return status
	}
	if key != "" {
		tp.logger.Debug("Unrecognized employee status", zap.String("status", text))
	}
	return core.StatusUnknown
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the result is valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	// If no limit or text is already within limits, return as is
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]

	// Remove bytes until we have valid UTF-8
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	return truncated + "..."
}

// SanitizeUTF8 drops invalid UTF-8 bytes from text
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				continue
			}
		}
		result = append(result, r)
	}

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(string(result))))

	return string(result)
}
