package main

import (
	"context"
	"fmt"
	"time"

	"github.com/baxromumarov/strand"
)

func w1(ctx context.Context) (string, error) {
	select {
	case <-time.After(1 * time.Second):
		return "w1", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func w2(ctx context.Context) (string, error) {
	select {
	case <-time.After(1 * time.Second):
		return "w2", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func w3(ctx context.Context) (string, error) {
	return "", fmt.Errorf("w3 failed")
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	arr := []strand.TaskFunc[string]{w3, w1, w2}

	now := time.Now()

	_, err := strand.Gather(
		ctx,
		func(ctx context.Context, g *strand.Group[string]) (struct{}, error) {
			for idx, f := range arr {
				g.Go(fmt.Sprintf("%d index", idx), f)
			}
			return struct{}{}, nil
		},
		strand.WithPanicAsError(),
	)

	if err != nil {
		fmt.Println("Final error:", err)
	}

	fmt.Println("Elapsed time:", time.Since(now))
}

// func main() {
// 	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
// 	defer cancel()

// 	arr := []strand.TaskFunc[string]{w3, w1, w2}

// 	now := time.Now()

// 	v, err := strand.Race(ctx, arr...)
// 	fmt.Println("winner:", v, "err:", err)

// 	fmt.Println("Elapsed time: ", time.Since(now).Seconds())
// }

// func main() {
// 	counter := strand.NewActor("counter", 0)
// 	defer counter.Close()

// 	for range 10 {
// 		_ = counter.Do(context.Background(), func(n *int) error {
// 			*n++
// 			return nil
// 		})
// 	}

// 	v, _ := strand.Call(context.Background(), counter, func(n *int) (int, error) {
// 		return *n, nil
// 	})
// 	fmt.Println(v)
// }
