package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(name string) Checker {
	return CheckerFunc(name, func(context.Context) error { return nil })
}

func failing(name string, err error) Checker {
	return CheckerFunc(name, func(context.Context) error { return err })
}

func TestAggregator_Check(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		want     Status
	}{
		{name: "无检查项", want: StatusHealthy},
		{name: "全部健康", checkers: []Checker{ok("consul"), ok("deadlocks")}, want: StatusHealthy},
		{name: "部分不健康", checkers: []Checker{ok("deadlocks"), failing("consul", errors.New("down"))}, want: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(time.Second)
			for _, c := range tt.checkers {
				require.NoError(t, agg.Register(c))
			}

			resp := agg.Check(context.Background())
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checkers))
		})
	}
}

func TestAggregator_FailureDetails(t *testing.T) {
	agg := NewAggregator(time.Second)
	require.NoError(t, agg.Register(failing("consul", errors.New("Could not ping consul"))))

	resp := agg.Check(context.Background())
	result := resp.Checks["consul"]
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, "Could not ping consul", result.Error)
	assert.False(t, resp.IsHealthy())
}

func TestAggregator_PanicIsUnhealthy(t *testing.T) {
	agg := NewAggregator(time.Second)
	require.NoError(t, agg.Register(CheckerFunc("boom", func(context.Context) error { panic("x") })))

	resp := agg.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Checks["boom"].Status)
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(20 * time.Millisecond)
	require.NoError(t, agg.Register(CheckerFunc("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))

	resp := agg.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestAggregator_DuplicateName(t *testing.T) {
	agg := NewAggregator(0)
	require.NoError(t, agg.Register(ok("consul")))
	assert.Error(t, agg.Register(ok("consul")))
	assert.Equal(t, []string{"consul"}, agg.Names())
}

func TestAggregator_Metadata(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.SetMetadata("service", "hello-world")

	resp := agg.Check(context.Background())
	assert.Equal(t, "hello-world", resp.Metadata["service"])
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())

	cfg.Timeout = time.Millisecond
	assert.Error(t, cfg.Validate())
}
