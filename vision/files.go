package vision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/utils"
)

// FileStore 上传图像与处理产物所在目录，对外通过 urlPrefix 提供访问
type FileStore struct {
	dir       string
	urlPrefix string
}

func NewFileStore(dir, urlPrefix string) *FileStore {
	return &FileStore{
		dir:       dir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}
}

func (f *FileStore) Dir() string {
	return f.dir
}

// NewPath 生成目录内的新文件路径
func (f *FileStore) NewPath(prefix, ext string) string {
	return filepath.Join(f.dir, utils.NewFileName(prefix, ext))
}

// Describe 读取图像尺寸与MD5，生成引用
func (f *FileStore) Describe(path string) (*model.ImageRef, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	md5, err := utils.FileMD5(path)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate md5: %w", err)
	}

	name := filepath.Base(path)
	bounds := img.Bounds()
	return &model.ImageRef{
		ID:     strings.TrimSuffix(name, filepath.Ext(name)),
		Path:   path,
		URL:    f.urlPrefix + "/" + name,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		MD5:    md5,
	}, nil
}

// Resolve 将引用映射到目录内的文件。引用可能来自客户端，只取文件名部分；带 MD5 时校验内容。
func (f *FileStore) Resolve(ref *model.ImageRef) (string, error) {
	if ref == nil {
		return "", fmt.Errorf("image reference is nil")
	}

	name := ref.Path
	if name == "" {
		name = ref.URL
	}
	name = filepath.Base(filepath.FromSlash(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("image reference %q has no file name", ref.ID)
	}

	path := filepath.Join(f.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("image %q: %w", ref.ID, err)
	}
	if err := utils.VerifyFileMD5(path, ref.MD5); err != nil {
		return "", fmt.Errorf("image %q: %w", ref.ID, err)
	}
	return path, nil
}

// Remove 删除引用对应的文件
func (f *FileStore) Remove(ref *model.ImageRef) error {
	path, err := f.Resolve(ref)
	if err != nil {
		return err
	}
	return os.Remove(path)
}
