package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/wyfcoding/beaconrange/xerrors"
)

// MinIOOptions 对象存储连接参数。
type MinIOOptions struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	// Region 为空时首次访问桶会额外查询桶所在区域.
	Region string
}

// MinIOClient 实现了 LineStore 接口，是对接 MinIO 或 S3 兼容存储系统的具体驱动。
// 桶名取自位置 s3://bucket/key，不绑定在客户端上。
type MinIOClient struct {
	client *minio.Client
	logger *slog.Logger
}

// NewMinIOClient 构造一个新的 MinIO 存储驱动。
func NewMinIOClient(opts MinIOOptions, logger *slog.Logger) (*MinIOClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		logger.Error("failed to create minio client", "endpoint", opts.Endpoint, "error", err)
		return nil, xerrors.Configuration("failed to create minio client", err).WithContext("endpoint", opts.Endpoint)
	}

	logger.Info("minio_client initialized", "endpoint", opts.Endpoint)

	return &MinIOClient{client: client, logger: logger}, nil
}

// ReadLines 下载 s3://bucket/key 并按行切分.
func (c *MinIOClient) ReadLines(ctx context.Context, location string) ([]string, error) {
	bucket, key, err := ParseObjectLocation(location)
	if err != nil {
		return nil, err
	}
	obj, err := c.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, xerrors.IO("minio download failed", err).WithContext("location", location)
	}
	defer obj.Close()

	lines, err := scanLines(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, xerrors.IO("object not found", err).WithContext("location", location)
		}
		return nil, xerrors.IO("minio read failed", err).WithContext("location", location)
	}
	return lines, nil
}

// WriteLines 以单个 PutObject 上传全部行.
func (c *MinIOClient) WriteLines(ctx context.Context, location string, lines []string) error {
	bucket, key, err := ParseObjectLocation(location)
	if err != nil {
		return err
	}
	body := joinLines(lines)
	start := time.Now()
	// PutObject 成功前对象不可见，不存在半截输出
	_, err = c.client.PutObject(ctx, bucket, key, strings.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		c.logger.Error("minio upload failed", "location", location, "error", err)
		return xerrors.IO(fmt.Sprintf("minio upload %s failed", key), err).WithContext("location", location)
	}
	c.logger.Debug("minio upload successful", "location", location, "duration", time.Since(start))
	return nil
}
