package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"ProxyLane/internal/conf"
	"ProxyLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"
)

func TestNewPoolTask_Specs(t *testing.T) {
	f := newUsecaseFixture(t, nil)

	task := NewPoolTask(f.uc, nil, nil, log.DefaultLogger)
	assert.True(t, task.HealthCheckEnabled())
	assert.Equal(t, "@every 5m0s", task.HealthCheckSpec())
	assert.Equal(t, "@every 1m0s", task.FlushSpec())

	task = NewPoolTask(f.uc,
		&conf.HealthCheck{Enabled: false, Interval: durationpb.New(30 * time.Second)},
		&conf.Proxy{FlushInterval: durationpb.New(10 * time.Second)},
		log.DefaultLogger)
	assert.False(t, task.HealthCheckEnabled())
	assert.Equal(t, "@every 30s", task.HealthCheckSpec())
	assert.Equal(t, "@every 10s", task.FlushSpec())
}

func TestPoolTask_RunHealthCheck(t *testing.T) {
	f := newUsecaseFixture(t, nil)
	task := NewPoolTask(f.uc, nil, nil, log.DefaultLogger)
	ctx := context.Background()

	// Empty pool: nothing probed or stored
	require.NoError(t, task.RunHealthCheck(ctx))
	f.results.AssertNotCalled(t, "SaveLastResult", mock.Anything, mock.Anything)

	id := f.add(t, "10.0.0.1", 1, "http")
	f.prober.set(id, model.ProbeOutcome{Healthy: true, LatencyMs: 12})
	f.results.On("SaveLastResult", ctx, mock.Anything).Return(nil).Once()
	f.repo.On("SaveBatch", ctx, mock.Anything).Return(nil).Once()

	require.NoError(t, task.RunHealthCheck(ctx))
	rec, _ := f.uc.GetProxy(ctx, id)
	assert.Equal(t, model.StatusActive, rec.Status)
	f.results.AssertExpectations(t)
}

func TestPoolTask_FlushSnapshotRetries(t *testing.T) {
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}

	tests := []struct {
		name      string
		errs      []error
		wantErr   bool
		wantCalls int
	}{
		{name: "success", errs: []error{nil}, wantCalls: 1},
		{name: "retryable then success", errs: []error{deadlock, nil}, wantCalls: 2},
		{name: "retryable twice", errs: []error{deadlock, deadlock}, wantErr: true, wantCalls: 2},
		{name: "not retryable", errs: []error{errors.New("syntax error")}, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUsecaseFixture(t, nil)
			f.add(t, "10.0.0.1", 1, "http")
			task := NewPoolTask(f.uc, nil, nil, log.DefaultLogger)
			ctx := context.Background()

			for _, err := range tt.errs {
				f.repo.On("SaveBatch", ctx, mock.Anything).Return(err).Once()
			}

			err := task.FlushSnapshot(ctx)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			f.repo.AssertNumberOfCalls(t, "SaveBatch", tt.wantCalls)
		})
	}
}
