package main

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/KOMKZ/go-yogan-consul/balancer"
	"github.com/KOMKZ/go-yogan-consul/consul"
	"github.com/KOMKZ/go-yogan-consul/httpclient"
	"github.com/KOMKZ/go-yogan-consul/httpx"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/consul/api"
)

// saying /hello-world 的响应体
type saying struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

type helloWorldResource struct {
	template    string
	defaultName string
	counter     atomic.Int64
}

func newHelloWorldResource(template, defaultName string) *helloWorldResource {
	return &helloWorldResource{template: template, defaultName: defaultName}
}

func (r *helloWorldResource) sayHello(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		name = r.defaultName
	}
	httpx.OkJson(c, saying{
		ID:      r.counter.Add(1),
		Content: fmt.Sprintf(r.template, name),
	})
}

// helloClient 负载均衡客户端中用到的部分
type helloClient interface {
	AvailableServers() []*balancer.Server
	Do(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error)
}

type discoveryResource struct {
	agent  consul.Agent
	client helloClient
}

func (r *discoveryResource) healthyInstances(c *gin.Context) {
	entries, err := r.agent.HealthyServiceInstances(c.Request.Context(), c.Param("service"))
	if err != nil {
		httpx.HandleError(c, err)
		return
	}
	if entries == nil {
		entries = []*api.ServiceEntry{}
	}
	httpx.OkJson(c, entries)
}

func (r *discoveryResource) available(c *gin.Context) {
	servers := r.client.AvailableServers()
	if servers == nil {
		servers = []*balancer.Server{}
	}
	httpx.OkJson(c, servers)
}

// relay 经负载均衡客户端调用某个实例的 /hello-world
func (r *discoveryResource) relay(c *gin.Context) {
	req := httpclient.NewGetRequest("/hello-world").WithHeader("Accept", "application/json")
	if name := c.Query("name"); name != "" {
		req.WithQuery("name", name)
	}
	resp, err := r.client.Do(c.Request.Context(), req)
	if err != nil {
		httpx.HandleError(c, err)
		return
	}
	if !resp.IsSuccess() {
		c.JSON(http.StatusBadGateway, httpx.Response{Code: http.StatusBadGateway, Msg: "upstream " + resp.Status})
		return
	}

	var body struct {
		Data saying `json:"data"`
	}
	if err := resp.JSON(&body); err != nil {
		httpx.HandleError(c, fmt.Errorf("decode upstream response: %w", err))
		return
	}
	httpx.OkJson(c, body.Data)
}
