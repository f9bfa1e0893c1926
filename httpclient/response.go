package httpclient

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response 已读完 body 的响应
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte

	// Duration 从发出请求到读完 body 的耗时
	Duration time.Duration
}

// IsSuccess 2xx
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON 反序列化
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// String body 字符串
func (r *Response) String() string {
	return string(r.Body)
}
