package routine

import (
	"context"
	"sync"
	"testing"
)

func TestGoSafeRecovers(t *testing.T) {
	wg := sync.WaitGroup{}
	wg.Add(1)
	GoSafe(context.TODO(), func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()
}
