package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-payments/internal/config"
	"ms-payments/internal/models"
)

func main() {
	drop := flag.Bool("drop", false, "drop existing tables before creating")
	seed := flag.Bool("seed", false, "insert a sample event with ticket types")
	flag.Parse()

	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment variables")
	}
	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	if *drop {
		log.Println("Dropping tables...")
		dropTables(ctx, db)
	}

	log.Println("Creating tables...")
	createTables(ctx, db)

	if *seed {
		log.Println("Seeding sample data...")
		seedData(ctx, db)
	}

	log.Println("Done.")
}

func dropTables(ctx context.Context, db *bun.DB) {
	// Reverse dependency order.
	tables := []interface{}{
		(*models.TicketScan)(nil),
		(*models.Ticket)(nil),
		(*models.TicketIssue)(nil),
		(*models.Payment)(nil),
		(*models.TicketType)(nil),
		(*models.Event)(nil),
	}
	for _, m := range tables {
		_, _ = db.NewDropTable().Model(m).IfExists().Cascade().Exec(ctx)
	}
}

func createTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{
		(*models.Event)(nil),
		(*models.TicketType)(nil),
		(*models.Payment)(nil),
		(*models.TicketIssue)(nil),
		(*models.Ticket)(nil),
		(*models.TicketScan)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}
}

func seedData(ctx context.Context, db *bun.DB) {
	now := time.Now()
	event := models.Event{
		ID:        uuid.NewString(),
		Slug:      "lima-rock-fest",
		Title:     "Lima Rock Fest",
		Venue:     "Estadio San Marcos",
		City:      "Lima",
		Status:    models.EventPublished,
		StartsAt:  now.AddDate(0, 1, 0),
		EndsAt:    now.AddDate(0, 1, 0).Add(6 * time.Hour),
		CreatedAt: now,
	}
	if _, err := db.NewInsert().Model(&event).Exec(ctx); err != nil {
		log.Fatalf("Failed to seed event: %v", err)
	}

	ticketTypes := []models.TicketType{
		{
			ID:            uuid.NewString(),
			EventID:       event.ID,
			Name:          "General",
			PriceCents:    8000,
			Currency:      "PEN",
			TotalQuantity: 500,
			PerOrderLimit: 4,
			Status:        models.TicketTypePublished,
			SaleStartsAt:  now,
			SaleEndsAt:    event.StartsAt,
			CreatedAt:     now,
		},
		{
			ID:            uuid.NewString(),
			EventID:       event.ID,
			Name:          "VIP",
			PriceCents:    25000,
			Currency:      "PEN",
			TotalQuantity: 50,
			PerOrderLimit: 2,
			Status:        models.TicketTypePublished,
			SaleStartsAt:  now,
			SaleEndsAt:    event.StartsAt,
			CreatedAt:     now,
		},
	}
	if _, err := db.NewInsert().Model(&ticketTypes).Exec(ctx); err != nil {
		log.Fatalf("Failed to seed ticket types: %v", err)
	}

	log.Printf("Seeded event %q with %d ticket types", event.Slug, len(ticketTypes))
}
