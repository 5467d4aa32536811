package progress_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruasync/ocisync/pkg/ocisync/progress"
)

type fakeLogger struct {
	infos int
	warns int
}

func (f *fakeLogger) InfoContext(context.Context, string, ...any) { f.infos++ }
func (f *fakeLogger) WarnContext(context.Context, string, ...any) { f.warns++ }

func TestSlogSink_Lifecycle(t *testing.T) {
	logger := &fakeLogger{}
	sink := progress.NewSlogSink(logger)

	h := sink.Register("layer-1", 100)
	sink.Tick(h, 40)
	sink.Tick(h, 60)
	sink.Complete(h)

	bars := sink.Snapshot()
	require.Len(t, bars, 1)
	assert.Equal(t, "layer-1", bars[0].Label)
	assert.Equal(t, int64(100), bars[0].Delivered)
	assert.True(t, bars[0].Done)
	assert.NoError(t, bars[0].Err)
	assert.Equal(t, 2, logger.infos) // register + complete
}

func TestSlogSink_Fail(t *testing.T) {
	logger := &fakeLogger{}
	sink := progress.NewSlogSink(logger)

	h := sink.Register("layer-2", 10)
	reason := errors.New("transport reset")
	sink.Fail(h, reason)

	bars := sink.Snapshot()
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Done)
	assert.ErrorIs(t, bars[0].Err, reason)
	assert.Equal(t, 1, logger.warns)
}

func TestNopSink(t *testing.T) {
	sink := progress.NopSink()
	h := sink.Register("noop", 5)
	sink.Tick(h, 5)
	sink.Complete(h)
	sink.Fail(h, errors.New("ignored"))
}
