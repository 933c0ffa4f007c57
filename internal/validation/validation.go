package validation

import (
	"os"
	"strconv"
	"strings"
)

func MaxChatBodyLength() int {
	maxStr := os.Getenv("MAX_CHAT_BODY_LENGTH")
	if maxStr == "" {
		return 4000
	}
	max, err := strconv.Atoi(maxStr)
	if err != nil || max < 1 {
		return 4000
	}
	return max
}

func MaxMailSubjectLength() int {
	maxStr := os.Getenv("MAX_MAIL_SUBJECT_LENGTH")
	if maxStr == "" {
		return 200
	}
	max, err := strconv.Atoi(maxStr)
	if err != nil || max < 1 {
		return 200
	}
	return max
}

func MaxMailBodyLength() int {
	maxStr := os.Getenv("MAX_MAIL_BODY_LENGTH")
	if maxStr == "" {
		return 20000
	}
	max, err := strconv.Atoi(maxStr)
	if err != nil || max < 1 {
		return 20000
	}
	return max
}

// MaxAttachmentBytes bounds a single mail attachment upload.
func MaxAttachmentBytes() int64 {
	maxStr := os.Getenv("MAX_ATTACHMENT_BYTES")
	if maxStr == "" {
		return 10 * 1024 * 1024
	}
	max, err := strconv.ParseInt(maxStr, 10, 64)
	if err != nil || max < 1 {
		return 10 * 1024 * 1024
	}
	return max
}

func TrimAndLimit(s string, max int) string {
	s = strings.TrimSpace(s)
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}
