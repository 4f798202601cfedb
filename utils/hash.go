package utils

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrChecksumMismatch 文件内容与记录的 MD5 不一致
var ErrChecksumMismatch = errors.New("checksum mismatch")

// FileMD5 流式计算文件MD5，作为图像内容标识
func FileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// VerifyFileMD5 校验文件内容，want 为空时不校验
func VerifyFileMD5(filePath, want string) error {
	if want == "" {
		return nil
	}
	got, err := FileMD5(filePath)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, filePath)
	}
	return nil
}
