package argo

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

// Downloader 把 url 的内容保存到 dst
type Downloader interface {
	Download(ctx context.Context, url, dst string) error
}

// HTTPDownloader 基于 fasthttp，跟随 GitHub release 的重定向
type HTTPDownloader struct {
	Client       *fasthttp.Client
	Timeout      time.Duration
	MaxRedirects int
}

func NewHTTPDownloader(timeout time.Duration) *HTTPDownloader {
	return &HTTPDownloader{
		Client: &fasthttp.Client{
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxResponseBodySize: 256 << 20,
		},
		Timeout:      timeout,
		MaxRedirects: 10,
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, url, dst string) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	release := func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	done := make(chan error, 1)
	go func() {
		done <- d.Client.DoRedirects(req, resp, d.MaxRedirects)
	}()

	timer := time.NewTimer(d.Timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		defer release()
		if err != nil {
			return fmt.Errorf("download %s: %w", url, err)
		}
	case <-timer.C:
		// 请求仍在进行，结束后再归还对象
		go func() { <-done; release() }()
		return fmt.Errorf("download %s: timed out after %s", url, d.Timeout)
	case <-ctx.Done():
		go func() { <-done; release() }()
		return ctx.Err()
	}

	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return fmt.Errorf("download %s: HTTP %d", url, code)
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := resp.BodyWriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
