package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_DeliversUpdatesInOrderAndAdvancesOffset(t *testing.T) {
	var mu sync.Mutex
	var offsets []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		mu.Lock()
		offsets = append(offsets, r.PostForm.Get("offset"))
		nth := len(offsets)
		mu.Unlock()

		switch nth {
		case 1:
			fmt.Fprint(w, okEnvelope(`[
				{"update_id":10,"message":{"message_id":1,"date":1,"chat":{"id":-1,"type":"supergroup"},"text":"a"}},
				{"update_id":11,"message":{"message_id":2,"date":2,"chat":{"id":-1,"type":"supergroup"},"text":"b"}}
			]`))
		default:
			fmt.Fprint(w, okEnvelope(`[]`))
		}
	}))
	t.Cleanup(srv.Close)

	var got []string
	delivered := make(chan struct{}, 8)
	p := NewPoller(NewBotAPIWith("test-token", srv.URL, srv.Client()), func(ctx context.Context, upd Update) {
		got = append(got, upd.Message.Text)
		delivered <- struct{}{}
	})
	p.PollTimeout = 0

	p.Start(context.Background())
	for i := 0; i < 2; i++ {
		select {
		case <-delivered:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for update delivery")
		}
	}
	p.Stop()

	assert.Equal(t, []string{"a", "b"}, got)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(offsets), 2)
	assert.Equal(t, "0", offsets[0])
	// After consuming update 11 the poller asks for 12 onwards.
	assert.Equal(t, "12", offsets[1])
}

func TestPoller_StopExitsPromptly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, okEnvelope(`[]`))
	}))
	t.Cleanup(srv.Close)

	p := NewPoller(NewBotAPIWith("test-token", srv.URL, srv.Client()), func(context.Context, Update) {})
	p.PollTimeout = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPoller_RetriesAfterError(t *testing.T) {
	var mu sync.Mutex
	requests := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		nth := requests
		mu.Unlock()

		if nth == 1 {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"ok":false,"description":"bad gateway","error_code":502}`)
			return
		}
		fmt.Fprint(w, okEnvelope(`[{"update_id":1,"message":{"message_id":1,"date":1,"chat":{"id":-1,"type":"supergroup"},"text":"x"}}]`))
	}))
	t.Cleanup(srv.Close)

	delivered := make(chan struct{}, 1)
	p := NewPoller(NewBotAPIWith("test-token", srv.URL, srv.Client()), func(ctx context.Context, upd Update) {
		select {
		case delivered <- struct{}{}:
		default:
		}
	})
	p.PollTimeout = 0

	p.Start(context.Background())
	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("poller never recovered from the failed poll")
	}
	p.Stop()
}
