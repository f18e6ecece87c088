package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/types"
)

func TestProviderEchoesLastUserMessageByDefault(t *testing.T) {
	p := New()

	resp, err := p.Complete(context.Background(), modelclient.Request{
		Messages: []modelclient.Message{
			{Role: types.RoleUser, Content: "first"},
			{Role: types.RoleUser, Content: "second"},
		},
	})
	require.NoError(t, err)
	require.Contains(t, resp.Text, "second")
}

func TestProviderReturnsQueuedErrorsInOrder(t *testing.T) {
	p := New()
	p.Errs = []error{types.NewError(types.ErrProviderError, "boom")}
	p.Reply = "fine now"

	_, err := p.Complete(context.Background(), modelclient.Request{})
	require.Error(t, err)

	resp, err := p.Complete(context.Background(), modelclient.Request{})
	require.NoError(t, err)
	require.Equal(t, "fine now", resp.Text)
	require.Equal(t, 2, p.Calls())
}
