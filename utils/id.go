package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewSessionID 生成会话ID
func NewSessionID() string {
	return uuid.NewString()
}

// NewFileName 生成基于时间戳的文件名
func NewFileName(prefix, ext string) string {
	return fmt.Sprintf("%s%d%s", prefix, time.Now().UnixNano(), ext)
}
