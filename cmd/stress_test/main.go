package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rlin26/cart-engine/internal/adapter/remote"
	"github.com/rlin26/cart-engine/internal/adapter/storage"
	"github.com/rlin26/cart-engine/internal/config"
	"github.com/rlin26/cart-engine/internal/core/domain"
	"github.com/rlin26/cart-engine/internal/core/service"
)

const (
	baseURL      = "http://localhost:8080"
	totalUsers   = 25
	addsPerUser  = 20
	itemsPerCart = 5
)

type sessionAuth bool

func (a sessionAuth) IsAuthenticated() bool { return bool(a) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis not reachable at %s: %v", cfg.RedisAddr, err)
	}
	defer rdb.Close()

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for u := 0; u < totalUsers; u++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			userID := "stress-" + uuid.NewString()
			store := storage.NewNamespacedRedisAdapter(rdb, userID)

			// Drive a full session through the engine: debounced adds,
			// a final flush, then a rehydrate from a fresh instance.
			cart := service.NewCartService(store, nil, sessionAuth(true), cfg.DebounceInterval, zap.NewNop())
			cart.Hydrate(ctx)
			for i := 0; i < addsPerUser; i++ {
				if _, err := cart.AddItem(buildProduct(i%itemsPerCart), 1); err != nil {
					failCount.Add(1)
					return
				}
			}
			if err := cart.Flush(ctx); err != nil {
				failCount.Add(1)
				return
			}
			snapshot := cart.Items()
			cart.Close()

			reloaded := service.NewCartService(store, nil, sessionAuth(true), cfg.DebounceInterval, zap.NewNop())
			reloaded.Hydrate(ctx)
			defer reloaded.Close()
			if reloaded.TotalQuantity() != addsPerUser || !sameCart(reloaded.Items(), snapshot) {
				failCount.Add(1)
				return
			}

			// Push the flushed snapshot through the remote service and
			// read it back.
			client := remote.NewClient(baseURL, userID)
			if _, err := client.SaveCart(ctx, snapshot); err != nil {
				failCount.Add(1)
				return
			}
			got, err := client.FetchCart(ctx)
			if err != nil || !sameCart(got, snapshot) {
				failCount.Add(1)
				return
			}
			successCount.Add(1)
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Users:            %d\n", totalUsers)
	fmt.Printf("Adds per user:    %d\n", addsPerUser)
	fmt.Printf("Consistent:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if fail == 0 {
		fmt.Println("PASS: every user read back their last flushed cart")
	} else {
		log.Fatalf("FAIL: %d users saw an inconsistent or failed cart", fail)
	}
}

func buildProduct(i int) domain.ProductSnapshot {
	price := int64(100 + i)
	return domain.ProductSnapshot{
		ID:    fmt.Sprintf("item-%d", i),
		Name:  fmt.Sprintf("Item %d", i),
		Price: &price,
	}
}

func sameCart(a, b []domain.CartItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Quantity != b[i].Quantity || a[i].UnitPrice != b[i].UnitPrice {
			return false
		}
	}
	return true
}
