package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/taha00000/book-for-me/cmd/mainconfig"
	"github.com/taha00000/book-for-me/internal/booking"
	appconfig "github.com/taha00000/book-for-me/internal/config"
	"github.com/taha00000/book-for-me/internal/inventory"
	"github.com/taha00000/book-for-me/pkg/logging"
)

// Seeds the vendor catalogue and generates slot inventory at 30-minute
// granularity across each vendor's operating hours.

var seedVendors = []inventory.Vendor{
	{
		ID:           "ace_padel_dha",
		Name:         "Ace Padel",
		Category:     "padel",
		Area:         "DHA Phase 6",
		PricePerHour: 2250,
		OpenTime:     "08:00",
		CloseTime:    "23:00",
		Timezone:     "Asia/Karachi",
		Resources:    []string{"court_1", "court_2"},
	},
	{
		ID:           "baseline_padel_clifton",
		Name:         "Baseline Padel",
		Category:     "padel",
		Area:         "Clifton",
		PricePerHour: 2000,
		OpenTime:     "09:00",
		CloseTime:    "22:00",
		Timezone:     "Asia/Karachi",
		Resources:    []string{"court_1"},
	},
	{
		ID:           "kickoff_futsal_gulberg",
		Name:         "Kickoff Futsal",
		Category:     "futsal",
		Area:         "Gulberg",
		PricePerHour: 3000,
		OpenTime:     "10:00",
		CloseTime:    "23:00",
		Timezone:     "Asia/Karachi",
		Resources:    []string{"pitch_a", "pitch_b"},
	},
	{
		ID:           "shears_salon_dha",
		Name:         "Shears Salon",
		Category:     "salon",
		Area:         "DHA Phase 5",
		PricePerHour: 1500,
		OpenTime:     "11:00",
		CloseTime:    "20:00",
		Timezone:     "Asia/Karachi",
		Resources:    []string{"chair_1", "chair_2", "chair_3"},
	},
}

var slotDurations = []float64{1, 2}

func main() {
	_ = godotenv.Load()

	days := flag.Int("days", 7, "number of days of slot inventory to generate")
	start := flag.String("start", "", "first date to seed (YYYY-MM-DD, default today)")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	firstDay := time.Now()
	if *start != "" {
		parsed, err := time.Parse("2006-01-02", *start)
		if err != nil {
			logger.Error("invalid -start date", "value", *start)
			os.Exit(1)
		}
		firstDay = parsed
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err.Error())
		os.Exit(1)
	}
	store := inventory.NewStore(dynamodb.NewFromConfig(awsCfg), inventory.Tables{
		Vendors: cfg.TableName("vendors"),
		Slots:   cfg.TableName("slots"),
	}, logger)

	for _, vendor := range seedVendors {
		v := vendor
		if err := store.PutVendor(ctx, &v); err != nil {
			logger.Error("failed to seed vendor", "vendor", v.ID, "error", err.Error())
			os.Exit(1)
		}
		logger.Info("seeded vendor", "vendor", v.ID)

		created, skipped := 0, 0
		for day := 0; day < *days; day++ {
			date := firstDay.AddDate(0, 0, day).Format("2006-01-02")
			for _, slot := range generateSlots(&v, date, cfg.DiscountPercent) {
				s := slot
				if err := store.PutSlot(ctx, &s); err != nil {
					// Existing documents keep their live status.
					skipped++
					continue
				}
				created++
			}
		}
		logger.Info("seeded slots", "vendor", v.ID, "created", created, "skipped", skipped)
	}
}

// generateSlots emits one available slot per (resource, 30-minute start,
// duration) combination fitting inside the vendor's operating hours. The
// stored price is the discounted hourly rate times the duration.
func generateSlots(v *inventory.Vendor, date string, discountPercent float64) []inventory.Slot {
	open := minutesOf(v.OpenTime)
	closing := minutesOf(v.CloseTime)
	if open < 0 || closing <= open {
		return nil
	}

	var slots []inventory.Slot
	for _, duration := range slotDurations {
		length := int(duration * 60)
		for _, resource := range v.Resources {
			for start := open; start+length <= closing; start += 30 {
				slots = append(slots, inventory.Slot{
					VendorID:      v.ID,
					ResourceID:    resource,
					Date:          date,
					StartTime:     fmt.Sprintf("%02d:%02d", start/60, start%60),
					DurationHours: duration,
					Status:        inventory.SlotAvailable,
					Price:         booking.PriceQuote(v.PricePerHour, duration, discountPercent).Discounted,
				})
			}
		}
	}
	return slots
}

func minutesOf(hhmm string) int {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return -1
	}
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return -1
	}
	return h*60 + m
}
