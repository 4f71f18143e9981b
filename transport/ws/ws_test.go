package ws

import (
	"testing"
	"time"
)

func newQueuedSession(depth int) *Session {
	return &Session{
		out:    make(chan *Msg, depth),
		outErr: make(chan error, 1),
	}
}

func TestSendDropsOldestWhenFull(t *testing.T) {
	s := newQueuedSession(2)

	for i, payload := range []string{"a", "b", "c"} {
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := s.Send(&Msg{Type: TextMessage, Payload: []byte(payload)}); err != nil {
				t.Errorf("send %d: %v", i, err)
			}
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("send %d blocked on full queue", i)
		}
	}

	var got []string
	for len(s.out) > 0 {
		got = append(got, string((<-s.out).Payload))
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("queued = %v, want [b c]", got)
	}
}
