package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeResponse(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind ResponseKind
		wantHash string
		wantID   string
	}{
		{
			name:     "transactions array with id",
			body:     `{"transactions":[{"id":"tx_123"}]}`,
			wantKind: ResponseQueued,
			wantID:   "tx_123",
		},
		{
			name:     "root transaction hash",
			body:     `{"transactionHash":"0xdeadbeef"}`,
			wantKind: ResponseImmediate,
			wantHash: "0xdeadbeef",
		},
		{
			name:     "root queue id",
			body:     `{"queueId":"q_42"}`,
			wantKind: ResponseQueued,
			wantID:   "q_42",
		},
		{
			name:     "result wrapper with hash",
			body:     `{"result":{"transactionHash":"0xcafe"}}`,
			wantKind: ResponseImmediate,
			wantHash: "0xcafe",
		},
		{
			name:     "result wrapper with transaction ids",
			body:     `{"result":{"transactionIds":["tx_9","tx_10"]}}`,
			wantKind: ResponseQueued,
			wantID:   "tx_9",
		},
		{
			name:     "result wrapper with queue id",
			body:     `{"result":{"queueId":"q_7"}}`,
			wantKind: ResponseQueued,
			wantID:   "q_7",
		},
		{
			name:     "transactions array takes precedence over root hash",
			body:     `{"transactions":[{"id":"tx_1"}],"transactionHash":"0xbeef"}`,
			wantKind: ResponseQueued,
			wantID:   "tx_1",
		},
		{
			name:     "root hash takes precedence over queue id",
			body:     `{"transactionHash":"0xbeef","queueId":"q_1"}`,
			wantKind: ResponseImmediate,
			wantHash: "0xbeef",
		},
		{
			name:     "unrecognized shape",
			body:     `{"ok":true}`,
			wantKind: ResponseUnrecognized,
		},
		{
			name:     "invalid json",
			body:     `not json`,
			wantKind: ResponseUnrecognized,
		},
		{
			name:     "empty transactions array falls through",
			body:     `{"transactions":[],"queueId":"q_2"}`,
			wantKind: ResponseQueued,
			wantID:   "q_2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := normalizeResponse([]byte(tt.body))
			require.Equal(t, tt.wantKind, resp.Kind)
			require.Equal(t, tt.wantHash, resp.TransactionHash)
			require.Equal(t, tt.wantID, resp.QueueID)
			require.Equal(t, tt.body, string(resp.Raw))
		})
	}
}
