package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/enquirykeeper/internal/logging"
)

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", f.err)
}

func TestRedisPublisher_Publish(t *testing.T) {
	f := &fakeStream{}
	p := NewRedisPublisher(f, "enquiries:search")

	err := p.Publish(context.Background(), Document{
		ID:        "e1",
		Fields:    map[string]string{"child_name": "Kasozi"},
		CreatedBy: "u",
		UpdatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, f.args, 1)
	assert.Equal(t, "enquiries:search", f.args[0].Stream)
	assert.Equal(t, map[string]any{
		"id":         "e1",
		"fields":     `{"child_name":"Kasozi"}`,
		"created_by": "u",
		"updated_at": "2024-05-01T09:00:00Z",
	}, f.args[0].Values)
}

func TestRedisPublisher_Error(t *testing.T) {
	p := NewRedisPublisher(&fakeStream{err: errors.New("READONLY")}, "s")

	err := p.Publish(context.Background(), Document{ID: "e1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xadd s")
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "redis://localhost:6379/notanumber")
	require.Error(t, err)
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(logging.Nop())
	assert.NoError(t, p.Publish(context.Background(), Document{ID: "e1"}))
}
