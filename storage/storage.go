// Package storage 按位置读写文本行：本地文件，或 s3://bucket/key 形式的对象存储。
package storage

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/wyfcoding/beaconrange/xerrors"
)

// SchemeS3 对象存储位置前缀。
const SchemeS3 = "s3://"

// LineStore 定义了按行读写的通用接口，支持多驱动扩展。
type LineStore interface {
	// ReadLines 读取全部行，去掉行尾换行符
	ReadLines(ctx context.Context, location string) ([]string, error)

	// WriteLines 写出全部行，每行以 '\n' 结尾
	WriteLines(ctx context.Context, location string, lines []string) error
}

// Router 根据位置前缀把请求分派给本地文件或对象存储驱动。
type Router struct {
	local  LineStore
	object LineStore
}

// NewRouter 创建路由。object 可以为 nil，此时 s3:// 位置返回 Configuration 错误。
func NewRouter(local, object LineStore) *Router {
	if local == nil {
		local = NewLocal()
	}
	return &Router{local: local, object: object}
}

// ReadLines 按位置前缀选择驱动读取.
func (r *Router) ReadLines(ctx context.Context, location string) ([]string, error) {
	s, err := r.pick(location)
	if err != nil {
		return nil, err
	}
	return s.ReadLines(ctx, location)
}

// WriteLines 按位置前缀选择驱动写入.
func (r *Router) WriteLines(ctx context.Context, location string, lines []string) error {
	s, err := r.pick(location)
	if err != nil {
		return err
	}
	return s.WriteLines(ctx, location, lines)
}

func (r *Router) pick(location string) (LineStore, error) {
	if location == "" {
		return nil, xerrors.InvalidArg("empty location", nil)
	}
	if !IsObjectLocation(location) {
		return r.local, nil
	}
	if r.object == nil {
		return nil, xerrors.Configuration("object store not configured", nil).WithContext("location", location)
	}
	return r.object, nil
}

// IsObjectLocation 判断是否为对象存储位置。
func IsObjectLocation(location string) bool {
	return strings.HasPrefix(location, SchemeS3)
}

// ParseObjectLocation 把 s3://bucket/key 拆成桶名与对象名。
func ParseObjectLocation(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, SchemeS3)
	if !ok {
		return "", "", xerrors.InvalidArg("not an object location", nil).WithContext("location", location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", xerrors.InvalidArg("object location needs bucket and key", nil).WithContext("location", location)
	}
	return bucket, key, nil
}

func scanLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	return lines, sc.Err()
}

func joinLines(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}
