package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingService struct {
	runs atomic.Int32
}

func (s *countingService) Serve(ctx context.Context) error {
	s.runs.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestTree_RunsServicesUntilCancelled(t *testing.T) {
	tree := NewTree("test", TreeConfig{ShutdownTimeout: time.Second}, zap.NewNop())
	worker := &countingService{}
	api := &countingService{}
	tree.AddWorker(worker)
	tree.AddAPI(api)

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)

	assert.Eventually(t, func() bool {
		return worker.runs.Load() == 1 && api.runs.Load() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop")
	}
}
