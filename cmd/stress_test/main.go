package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/ppe-inventory/internal/adapter/storage"
	"github.com/rl1809/ppe-inventory/internal/core/domain"
	"github.com/rl1809/ppe-inventory/internal/core/service"
)

// Floods RegisterDelivery with concurrent single-unit requests against one
// area stock record and checks that exactly initialStock of them succeed.
const (
	initialStock  = 20
	totalRequests = 50
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx := context.Background()

	db, err := sql.Open("mysql", envOr("MYSQL_DSN", "root:root@tcp(localhost:3306)/ppe_inventory?parseTime=true"))
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(50)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: envOr("REDIS_ADDR", "localhost:6379")})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	deliveryService := service.NewDeliveryService(
		mysqlAdapter, mysqlAdapter, mysqlAdapter, mysqlAdapter, mysqlAdapter, redisAdapter)

	itemID, workerID, supervisorUserID, areaRecordID := seed(ctx, db)
	log.Printf("seeded area stock record %d with %d units", areaRecordID, initialStock)

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := deliveryService.RegisterDelivery(ctx, service.RegisterDeliveryInput{
				WorkerID:         workerID,
				SupervisorUserID: supervisorUserID,
				Kind:             domain.DeliveryFirstIssue,
				Signature:        fmt.Sprintf("stress-%d", n),
				Lines: []service.DeliveryLineInput{
					{ItemID: itemID, Quantity: 1, Reason: "stress test"},
				},
			})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d deliveries succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	var finalStock int
	if err := db.QueryRowContext(ctx,
		`SELECT quantity FROM area_stock WHERE id = ?`, areaRecordID).Scan(&finalStock); err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Area Stock: %d\n", finalStock)

	if finalStock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", finalStock)
	}
}

// seed wipes previous stress rows and inserts one item, one area with a
// worker and a supervisor, and an area stock record holding initialStock.
func seed(ctx context.Context, db *sql.DB) (itemID, workerID, supervisorUserID, areaRecordID int64) {
	mustExec := func(query string, args ...any) sql.Result {
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			log.Fatalf("seed: %v", err)
		}
		return res
	}

	mustExec(`DELETE FROM delivery_lines WHERE reason = 'stress test'`)
	mustExec(`DELETE FROM deliveries WHERE signature LIKE 'stress-%'`)
	mustExec(`DELETE FROM area_stock WHERE item_id IN (SELECT id FROM catalog_items WHERE code = 'stress-gloves')`)
	mustExec(`DELETE FROM catalog_items WHERE code = 'stress-gloves'`)

	res := mustExec(`INSERT INTO catalog_items (code, name, usage_kind) VALUES ('stress-gloves', 'Stress Gloves', 'CONSUMABLE')`)
	itemID, _ = res.LastInsertId()

	res = mustExec(`INSERT INTO areas (name) VALUES ('Stress Area')`)
	areaID, _ := res.LastInsertId()

	res = mustExec(`INSERT INTO workers (national_id, first_name, last_name, area_id, position, status)
		VALUES (UUID(), 'Stress', 'Worker', ?, 'Operator', 'ACTIVE')`, areaID)
	workerID, _ = res.LastInsertId()

	res = mustExec(`INSERT INTO workers (national_id, first_name, last_name, area_id, position, status)
		VALUES (UUID(), 'Stress', 'Supervisor', ?, 'Supervisor', 'ACTIVE')`, areaID)
	supervisorID, _ := res.LastInsertId()

	res = mustExec(`INSERT INTO users (username, worker_id) VALUES (UUID(), ?)`, supervisorID)
	supervisorUserID, _ = res.LastInsertId()

	var stateID int64
	if err := db.QueryRowContext(ctx,
		`SELECT id FROM stock_states WHERE name = 'IN_STOCK'`).Scan(&stateID); err != nil {
		log.Fatalf("seed: missing IN_STOCK state, load schema.sql first: %v", err)
	}

	res = mustExec(`INSERT INTO area_stock (item_id, area_id, state_id, quantity, min_quantity)
		VALUES (?, ?, ?, ?, 0)`, itemID, areaID, stateID, initialStock)
	areaRecordID, _ = res.LastInsertId()

	return itemID, workerID, supervisorUserID, areaRecordID
}
