package oss

import (
	"bytes"
	"fmt"
	"path"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/qs3c/codemorph_server/config"
)

type Client struct {
	client       *oss.Client
	bucket       *oss.Bucket
	bucketName   string
	cdnDomain    string
	reportPrefix string
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	if cfg.Endpoint == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("oss endpoint and bucket_name are required")
	}

	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Client{
		client:       client,
		bucket:       bucket,
		bucketName:   cfg.BucketName,
		cdnDomain:    cfg.CDNDomain,
		reportPrefix: cfg.ReportPrefix,
	}, nil
}

// UploadReport 上传对账报告 JSON，返回对象 key
func (c *Client) UploadReport(generatedAt time.Time, data []byte) (string, error) {
	objectKey := ReportKey(c.reportPrefix, generatedAt)

	err := c.bucket.PutObject(objectKey, bytes.NewReader(data), oss.ContentType("application/json"))
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	return objectKey, nil
}

// GetURL 获取文件访问 URL
func (c *Client) GetURL(objectKey string) string {
	return objectURL(c.cdnDomain, c.bucketName, c.client.Config.Endpoint, objectKey)
}

// GetSignedURL 生成带签名的临时访问URL（默认1小时有效）
func (c *Client) GetSignedURL(objectKey string, expireSeconds ...int64) (string, error) {
	expire := int64(3600)
	if len(expireSeconds) > 0 && expireSeconds[0] > 0 {
		expire = expireSeconds[0]
	}

	signedURL, err := c.bucket.SignURL(objectKey, oss.HTTPGet, expire)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}

	return signedURL, nil
}

// ReportKey 对账报告按日期分目录：<prefix>/2024/03/01/reconcile-20240301T000000Z.json
func ReportKey(prefix string, generatedAt time.Time) string {
	at := generatedAt.UTC()
	return path.Join(prefix, at.Format("2006/01/02"), "reconcile-"+at.Format("20060102T150405Z")+".json")
}

func objectURL(cdnDomain, bucketName, endpoint, objectKey string) string {
	if cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", cdnDomain, objectKey)
	}
	return fmt.Sprintf("https://%s.%s/%s", bucketName, endpoint, objectKey)
}
