package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Request 请求描述，可重复构建（换节点重试时每次 Clone 后改写 URL）
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   url.Values
}

// NewRequest 创建请求
func NewRequest(method, rawURL string) *Request {
	return &Request{
		Method:  method,
		URL:     rawURL,
		Headers: make(map[string]string),
		Query:   make(url.Values),
	}
}

// NewGetRequest GET
func NewGetRequest(rawURL string) *Request {
	return NewRequest(http.MethodGet, rawURL)
}

// WithHeader 设置 Header
func (r *Request) WithHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

// WithQuery 设置查询参数
func (r *Request) WithQuery(key, value string) *Request {
	if r.Query == nil {
		r.Query = make(url.Values)
	}
	r.Query.Set(key, value)
	return r
}

// Clone 深拷贝
func (r *Request) Clone() *Request {
	clone := NewRequest(r.Method, r.URL)
	for k, v := range r.Headers {
		clone.Headers[k] = v
	}
	for k, vs := range r.Query {
		clone.Query[k] = append([]string(nil), vs...)
	}
	return clone
}

func (r *Request) build(ctx context.Context) (*http.Request, error) {
	target := r.URL
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
