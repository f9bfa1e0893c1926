package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client HTTP 客户端
type Client struct {
	httpClient *http.Client
	config     *config
}

// NewClient 创建客户端
func NewClient(opts ...Option) *Client {
	cfg := newConfig(opts)
	return &Client{
		httpClient: &http.Client{Transport: cfg.transport},
		config:     cfg,
	}
}

// Do 执行请求，任何状态码都作为响应返回，只有传输错误返回 error
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Headers == nil {
		req.Headers = make(map[string]string, len(c.config.headers))
	}
	for k, v := range c.config.headers {
		if _, ok := req.Headers[k]; !ok {
			req.Headers[k] = v
		}
	}

	start := time.Now()
	resp, err := c.doOnce(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.Duration = time.Since(start)
	return resp, nil
}

func (c *Client) doOnce(ctx context.Context, req *Request) (*Response, error) {
	if c.config.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.timeout)
		defer cancel()
	}

	httpReq, err := req.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build http request: %w", err)
	}
	if c.config.beforeRequest != nil {
		if err := c.config.beforeRequest(httpReq); err != nil {
			return nil, fmt.Errorf("before request hook: %w", err)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Body:       body,
	}, nil
}

// Get GET 请求
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, NewGetRequest(rawURL))
}

// Close 释放空闲连接
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
