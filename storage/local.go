package storage

import (
	"context"
	"os"

	"github.com/google/renameio/v2"

	"github.com/wyfcoding/beaconrange/xerrors"
)

// OutputPerm 新建输出文件的权限 (受 umask 影响)。覆盖已有文件时沿用原文件权限。
const OutputPerm os.FileMode = 0o644

// Local 本地文件驱动。写入经 renameio 落盘：临时文件 fsync 后原子替换，崩溃或失败都不会留下半截输出。
type Local struct{}

// NewLocal 创建本地文件驱动.
func NewLocal() *Local { return &Local{} }

// ReadLines 按行读取本地文件，去掉行尾的 \r.
func (l *Local) ReadLines(_ context.Context, location string) ([]string, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, xerrors.IO("open input", err).WithContext("location", location)
	}
	defer f.Close()

	lines, err := scanLines(f)
	if err != nil {
		return nil, xerrors.IO("read input", err).WithContext("location", location)
	}
	return lines, nil
}

// WriteLines 以每行一个 \n 结尾的形式原子写入.
func (l *Local) WriteLines(_ context.Context, location string, lines []string) error {
	if err := renameio.WriteFile(location, []byte(joinLines(lines)), OutputPerm); err != nil {
		return xerrors.IO("write output", err).WithContext("location", location)
	}
	return nil
}
