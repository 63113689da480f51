package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var ErrImageTooLarge = errors.New("image exceeds download limit")

type Image struct {
	Data        []byte
	ContentType string
}

// Downloader 拉取生成图片的原始字节
type Downloader struct {
	client   *http.Client
	maxBytes int64
}

func NewDownloader(client *http.Client, maxBytes int64) *Downloader {
	return &Downloader{
		client:   client,
		maxBytes: maxBytes,
	}
}

func (d *Downloader) Fetch(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if d.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, d.maxBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return nil, ErrImageTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}

	return &Image{Data: data, ContentType: contentType}, nil
}
