package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxTitleLen maximum post title length in characters
	MaxTitleLen = 200
	// MaxSummaryLen maximum post summary length in characters
	MaxSummaryLen = 1000
)

// ValidatePost checks the user-editable post fields
func ValidatePost(title, summary, content string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title cannot be empty")
	}

	if utf8.RuneCountInString(title) > MaxTitleLen {
		return fmt.Errorf("title must not exceed %d characters", MaxTitleLen)
	}

	if utf8.RuneCountInString(summary) > MaxSummaryLen {
		return fmt.Errorf("summary must not exceed %d characters", MaxSummaryLen)
	}

	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content cannot be empty")
	}

	return nil
}
