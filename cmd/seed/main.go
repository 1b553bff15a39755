package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/lib/pq"

	"github.com/carenest/therapy-booking/internal/config"
	"github.com/carenest/therapy-booking/internal/database"
)

var districts = []string{
	"서울 강남구", "서울 서초구", "서울 송파구", "서울 마포구", "서울 노원구",
	"경기 성남시", "경기 고양시", "경기 수원시", "인천 연수구", "부산 해운대구",
}

var sessionHours = []int{10, 11, 13, 14, 15, 16}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var providers, guardians, days int
	flag.IntVar(&providers, "providers", 20, "number of approved providers")
	flag.IntVar(&guardians, "guardians", 200, "number of guardians, each with one or two children")
	flag.IntVar(&days, "days", 28, "days of slots to publish from tomorrow")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := database.NewConnection(config.DatabaseConfig{URL: dsn, MaxConnections: 5, MaxIdleConnections: 2})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer db.Close()

	loc, err := time.LoadLocation(getEnv("BOOKING_TIMEZONE", "Asia/Seoul"))
	if err != nil {
		log.Fatalf("load timezone: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())
	ctx := context.Background()

	log.Println("seed starting")
	providerIDs, err := seedProviders(ctx, db.DB, providers)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedGuardians(ctx, db.DB, guardians); err != nil {
		log.Fatalf("seed guardians: %v", err)
	}
	if err := seedSlots(ctx, db.DB, providerIDs, days, loc); err != nil {
		log.Fatalf("seed slots: %v", err)
	}
	log.Println("seed complete")
}

func seedProviders(ctx context.Context, db *sqlx.DB, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d providers", count)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		rate := int64(gofakeit.Number(6, 12)) * 10000
		fee := int64(gofakeit.Number(4, 8)) * 10000
		settlement := fee * 8 / 10

		first := gofakeit.Number(0, len(districts)-1)
		areas := []string{districts[first], districts[(first+1)%len(districts)]}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO providers (id, user_id, display_name, status, per_session_rate,
				consultation_fee, consultation_settlement_amount, service_areas)
			VALUES ($1, $2, $3, 'approved', $4, $5, $6, $7)
		`, id, uuid.New(), gofakeit.Name(), rate, fee, settlement, pq.Array(areas))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	log.Println("providers seeded")
	return ids, nil
}

func seedGuardians(ctx context.Context, db *sqlx.DB, count int) error {
	log.Printf("seeding %d guardians", count)

	const batchSize = 100
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			guardianID := uuid.New()
			address := fmt.Sprintf("%s %s %d-%d", districts[gofakeit.Number(0, len(districts)-1)],
				gofakeit.Street(), gofakeit.Number(1, 300), gofakeit.Number(1, 30))

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO guardian_profiles (user_id, name, service_address) VALUES ($1, $2, $3)
			`, guardianID, gofakeit.Name(), address); err != nil {
				_ = tx.Rollback()
				return err
			}

			for c := 0; c < gofakeit.Number(1, 2); c++ {
				birth := gofakeit.DateRange(time.Now().AddDate(-12, 0, 0), time.Now().AddDate(-2, 0, 0))
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO children (id, guardian_id, name, birth_date) VALUES ($1, $2, $3, $4)
				`, uuid.New(), guardianID, gofakeit.FirstName(), birth); err != nil {
					_ = tx.Rollback()
					return err
				}
			}
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		log.Printf("guardians seeded: %d/%d", end, count)
	}
	return nil
}

func seedSlots(ctx context.Context, db *sqlx.DB, providerIDs []uuid.UUID, days int, loc *time.Location) error {
	log.Printf("seeding %d days of slots for %d providers", days, len(providerIDs))

	today := time.Now().In(loc)
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, providerID := range providerIDs {
		for d := 0; d < days; d++ {
			date := start.AddDate(0, 0, d)
			if date.Weekday() == time.Sunday {
				continue
			}
			for _, hour := range sessionHours {
				// roughly one slot in ten is closed or buffered
				closed := gofakeit.Number(1, 10) == 1
				_, err := tx.ExecContext(ctx, `
					INSERT INTO time_slots (provider_id, slot_date, start_time, end_time, is_available, is_buffer_blocked)
					VALUES ($1, $2, $3, $4, $5, $6)
					ON CONFLICT (provider_id, slot_date, start_time) DO NOTHING
				`, providerID, date.Format("2006-01-02"),
					fmt.Sprintf("%02d:00", hour), fmt.Sprintf("%02d:50", hour),
					!closed || gofakeit.Bool(), closed && gofakeit.Bool())
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Println("slots seeded")
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
