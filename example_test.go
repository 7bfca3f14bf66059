package strand_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baxromumarov/strand"
)

func ExampleGather() {
	total, err := strand.Gather(context.Background(), func(ctx context.Context, g *strand.Group[int]) (int, error) {
		g.Go("a", func(ctx context.Context) (int, error) { return 1, nil })
		g.Go("b", func(ctx context.Context) (int, error) { return 2, nil })
		sum := 0
		for range 2 {
			out, ok, err := g.Next(ctx)
			if err != nil || !ok {
				return sum, err
			}
			sum += out.Value
		}
		return sum, nil
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("total:", total)
	// Output: total: 3
}

func ExampleGather_failFast() {
	_, err := strand.Gather(context.Background(), func(ctx context.Context, g *strand.Group[int]) (int, error) {
		g.Go("quick-fail", func(ctx context.Context) (int, error) {
			return 0, errors.New("something went wrong")
		})
		g.Go("long-task", func(ctx context.Context) (int, error) {
			// This child is cancelled when quick-fail returns an error.
			<-ctx.Done()
			return 0, ctx.Err()
		})
		return 0, nil
	})
	fmt.Println(err)
	// Output: task "quick-fail" failed: something went wrong
}

func ExampleNewGroup() {
	g := strand.NewGroup[int](context.Background(), strand.WithPolicy(strand.Collect))
	for i := range 3 {
		g.Go(fmt.Sprintf("task-%d", i), func(ctx context.Context) (int, error) {
			return 0, fmt.Errorf("error from task %d", i)
		})
	}
	err := g.Wait()
	fmt.Println("errors collected:", len(strand.AllTaskErrors(err)))
	// Output: errors collected: 3
}

func ExampleGather_bounded() {
	start := time.Now()
	_, err := strand.Gather(context.Background(), func(ctx context.Context, g *strand.Group[struct{}]) (struct{}, error) {
		for range 6 {
			g.Go("worker", func(ctx context.Context) (struct{}, error) {
				time.Sleep(50 * time.Millisecond)
				return struct{}{}, nil
			})
		}
		return struct{}{}, nil
	}, strand.WithLimit(3))
	if err != nil {
		fmt.Println("error:", err)
	}
	// With limit=3 and 6 children sleeping 50ms, takes ~100ms (2 batches).
	elapsed := time.Since(start)
	fmt.Println("completed in <200ms:", elapsed < 200*time.Millisecond)
	// Output: completed in <200ms: true
}

func ExampleSpawn() {
	task := strand.Spawn(context.Background(), "compute", strand.PriorityHigh, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	val, _ := task.Value(context.Background())
	fmt.Println("result:", val)
	// Output: result: 42
}

func ExampleNewBridge() {
	bridge, resolver := strand.NewBridge[string]()

	// A callback-style API settles the bridge from its own goroutine.
	go func() {
		resolver.Resolve("ready")
	}()

	v, err := bridge.Await(context.Background())
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(v)
	// Output: ready
}

func ExampleCall() {
	counter := strand.NewActor("counter", 0)
	defer counter.Close()

	for range 5 {
		_ = counter.Do(context.Background(), func(n *int) error {
			*n++
			return nil
		})
	}

	total, _ := strand.Call(context.Background(), counter, func(n *int) (int, error) {
		return *n, nil
	})
	fmt.Println("count:", total)
	// Output: count: 5
}

func ExampleRace() {
	fastest, err := strand.Race(context.Background(),
		func(ctx context.Context) (string, error) {
			time.Sleep(50 * time.Millisecond)
			return "slow", nil
		},
		func(ctx context.Context) (string, error) {
			return "fast", nil
		},
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("winner:", fastest)
	// Output: winner: fast
}

func ExampleForEach() {
	urls := []string{"a", "b", "c", "d"}
	err := strand.ForEach(context.Background(), urls, func(ctx context.Context, url string) error {
		fmt.Println("fetching", url)
		return nil
	}, strand.WithLimit(2))
	if err != nil {
		fmt.Println("error:", err)
	}
	// Unordered output:
	// fetching a
	// fetching b
	// fetching c
	// fetching d
}

func ExampleMap() {
	items := []int{1, 2, 3, 4, 5}
	results, err := strand.Map(context.Background(), items, func(ctx context.Context, n int) (int, error) {
		return n * n, nil
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(results)
	// Output: [1 4 9 16 25]
}
