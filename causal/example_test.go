package causal_test

import (
	"sync"

	"github.com/ardnew/causal/causal"
)

func Example() {
	if err := causal.Start(causal.WithOutput("profile.coz")); err != nil {
		panic(err)
	}
	defer causal.Shutdown()

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		causal.Go(func(t *causal.Thread) {
			defer wg.Done()

			for range 1000 {
				t.Visit()
				t.Progress("work")
			}
		})
	}

	wg.Wait()
}
