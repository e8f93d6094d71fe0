package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/lostfound"
	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/messaging"
)

// seedListing is one listing before it gets an ID and a timestamp.
type seedListing struct {
	OwnerID     string    `json:"ownerId"`
	Kind        core.Kind `json:"kind"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
}

var listings = []seedListing{
	{"maya", core.KindLost, "Electronics", "Wireless Headphones", "Black Sony headphones in a blue case", "Sports Field"},
	{"omar", core.KindFound, "electronics", "Black Headphones", "Found Sony headphones with blue case near the field", "Sports Field near entrance"},
	{"maya", core.KindLost, "Keys", "Car keys", "Toyota key fob with a red lanyard", "Parking lot B"},
	{"lena", core.KindFound, "Keys", "Key fob", "Toyota key with red lanyard", "Parking"},
	{"ravi", core.KindLost, "Books", "Organic chemistry textbook", "Clayden second edition, name inside cover", "Science Library"},
	{"sofia", core.KindFound, "Books", "Chemistry book", "Thick organic chemistry textbook left on a desk", "Library"},
	{"jonas", core.KindLost, "Clothing", "Green rain jacket", "Patagonia jacket, medium, hood torn", "Student Center"},
	{"omar", core.KindFound, "Clothing", "Jacket", "Green jacket with a torn hood", "Student Center cafeteria"},
	{"lena", core.KindLost, "Accessories", "Silver bracelet", "Thin silver chain bracelet with a heart charm", "Gym"},
	{"ravi", core.KindFound, "Electronics", "Phone charger", "White USB-C charger", "Lecture Hall 3"},
	{"sofia", core.KindLost, "Electronics", "Laptop charger", "Dell laptop charger, 65W", "Engineering Building room 204"},
	{"jonas", core.KindFound, "Electronics", "Laptop charger", "Dell charger left in room 204", "Engineering Building"},
}

var (
	seedFileName = flag.String("src", "", "file of seed listings, one JSON object per line")
	dbPath       = flag.String("db", "./lostfound.db", "path to BadgerDB database directory")
	natsURL      = flag.String("nats", "", "NATS server URL; when set, listings are announced instead of evaluated here")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// listingsFromFile returns an iterator over listings in a JSON lines file.
func listingsFromFile(filename string) (iter.Seq2[seedListing, error], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(seedListing, error) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		line := 0
		for scanner.Scan() {
			line++
			if len(scanner.Bytes()) == 0 {
				continue
			}
			var l seedListing
			if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
				yield(l, fmt.Errorf("line %d: %w", line, err))
				return
			}
			if !yield(l, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(seedListing{}, err)
		}
	}, nil
}

// listingsFromSlice returns an iterator over a slice of listings.
func listingsFromSlice(seeds []seedListing) iter.Seq2[seedListing, error] {
	return func(yield func(seedListing, error) bool) {
		for _, l := range seeds {
			if !yield(l, nil) {
				return
			}
		}
	}
}

// toListing assigns a fresh ID and creation time.
func toListing(seed seedListing, createdAt time.Time) *core.Listing {
	return &core.Listing{
		ID:          uuid.NewString(),
		OwnerID:     seed.OwnerID,
		Kind:        seed.Kind,
		Category:    seed.Category,
		Title:       seed.Title,
		Description: seed.Description,
		Location:    seed.Location,
		Status:      core.StatusActive,
		CreatedAt:   createdAt,
	}
}

// seedAll stores every listing and either evaluates it in process or
// announces it on the message bus.
func seedAll(ctx context.Context, engine *lostfound.Engine, publisher messaging.Publisher, source iter.Seq2[seedListing, error]) (int, error) {
	count := 0
	for seed, err := range source {
		if err != nil {
			return count, err
		}
		if err := engine.AddUser(ctx, seed.OwnerID); err != nil {
			return count, err
		}
		listing := toListing(seed, time.Now().UTC())

		if publisher == nil {
			err = engine.AddListing(ctx, listing)
		} else {
			err = addAndAnnounce(ctx, engine, publisher, listing)
		}
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func addAndAnnounce(ctx context.Context, engine *lostfound.Engine, publisher messaging.Publisher, listing *core.Listing) error {
	if err := core.ValidateListing(listing); err != nil {
		return err
	}
	if _, err := engine.Listings().AddListings(ctx, listing); err != nil {
		return err
	}
	return messaging.PublishListingCreated(publisher, listing)
}

func main() {
	ctx := context.Background()

	config, err := lostfound.NewConfig(lostfound.WithDataDir(*dbPath))
	if err != nil {
		panic(err)
	}
	engine, err := lostfound.Open(ctx, config)
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	var publisher messaging.Publisher
	if *natsURL != "" {
		natsConfig := messaging.DefaultConfig()
		natsConfig.URL = *natsURL
		client, err := messaging.Connect(natsConfig, slog.Default())
		if err != nil {
			panic(err)
		}
		defer client.Close()
		publisher = client
	}

	// Determine source of seed data
	var source iter.Seq2[seedListing, error]
	if *seedFileName != "" {
		source, err = listingsFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = listingsFromSlice(listings)
	}

	count, err := seedAll(ctx, engine, publisher, source)
	if err != nil {
		panic(err)
	}
	engine.Trigger().Wait()
	slog.Info("seeded listings", "count", count)
}
