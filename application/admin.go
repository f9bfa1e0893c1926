package application

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/KOMKZ/go-yogan-consul/httpx"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TaskRegistry 运维任务注册表
type TaskRegistry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewTaskRegistry 创建注册表
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: make(map[string]Task)}
}

// Register 注册任务，重名返回错误
func (r *TaskRegistry) Register(task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[task.Name()]; exists {
		return fmt.Errorf("task %q already registered", task.Name())
	}
	r.tasks[task.Name()] = task
	return nil
}

// Get 按名称获取
func (r *TaskRegistry) Get(name string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	return t, ok
}

// Names 已注册任务名（有序）
func (r *TaskRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// registerAdminRoutes GET /tasks 列出任务，POST /tasks/:name 执行任务
// 查询参数和表单参数合并后作为任务参数
func (a *Application) registerAdminRoutes(engine *gin.Engine) {
	engine.GET("/tasks", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpx.Response{Code: 0, Data: a.tasks.Names()})
	})

	engine.POST("/tasks/:name", func(c *gin.Context) {
		name := c.Param("name")
		task, ok := a.tasks.Get(name)
		if !ok {
			c.JSON(http.StatusNotFound, httpx.Response{Code: http.StatusNotFound, Msg: "task not found: " + name})
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			c.JSON(http.StatusBadRequest, httpx.Response{Code: http.StatusBadRequest, Msg: err.Error()})
			return
		}

		params := make(map[string][]string, len(c.Request.Form))
		for k, vs := range c.Request.Form {
			params[k] = vs
		}

		var out bytes.Buffer
		if err := task.Execute(c.Request.Context(), params, &out); err != nil {
			a.log.WarnCtx(c.Request.Context(), "Task failed", zap.String("task", name), zap.Error(err))
			httpx.HandleError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", out.Bytes())
	})
}
