// Command seed-retail-db creates the retail schema and loads sample data
// into the configured PostgreSQL database. Re-runnable: tables are created
// with IF NOT EXISTS and data is only inserted into empty tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailvoice/askdb/pkg/retaildb"
)

func main() {
	connStr := flag.String("conn", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (defaults to DATABASE_URL)")
	flag.Parse()

	if *connStr == "" {
		log.Fatal("connection string required: pass -conn or set DATABASE_URL")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, *connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	for _, stmt := range retaildb.SchemaDDL {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("Failed to create schema: %v", err)
		}
	}
	fmt.Println("Schema created.")

	var employeeCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM employees").Scan(&employeeCount); err != nil {
		log.Fatalf("Failed to check existing data: %v", err)
	}
	if employeeCount > 0 {
		fmt.Println("Sample data already present, skipping inserts.")
		return
	}

	for _, stmt := range retaildb.SampleData {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("Failed to insert sample data: %v", err)
		}
	}
	fmt.Println("Sample data loaded.")
}
