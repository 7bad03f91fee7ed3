package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// EconomyEvent mirrors the consumer's message format
type EconomyEvent struct {
	Kind     string                 `json:"kind"`
	UserID   string                 `json:"user_id"`
	Currency string                 `json:"currency,omitempty"`
	Amount   int64                  `json:"amount,omitempty"`
	Reason   string                 `json:"reason,omitempty"`
	Purchase *PurchasePayload       `json:"purchase,omitempty"`
	Client   *ClientPayload         `json:"client,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PurchasePayload is the purchase claim body
type PurchasePayload struct {
	ItemType string  `json:"item_type"`
	ItemID   string  `json:"item_id"`
	X        float64 `json:"x,omitempty"`
	Z        float64 `json:"z,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`
}

// ClientPayload is the client-reported state for sync claims
type ClientPayload struct {
	Cash     int64 `json:"cash"`
	Diamonds int64 `json:"diamonds"`
	XP       int64 `json:"xp"`
	Level    int   `json:"level"`
}

var userPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
}

var earnReasons = []string{
	"drink_served", "food_served", "customer_tip", "daily_bonus",
	"quest_reward", "staff_shift", "ad_reward", "achievement",
}

var furnitureItems = []string{
	"table_small", "chair_basic", "plant", "rug", "bar_stool", "chair_plush",
}

var staffTypes = []string{"waiter", "barista", "cleaner"}

func getUserID(idx int) string {
	prefixIdx := idx % len(userPrefixes)
	suffix := idx/len(userPrefixes) + 1
	return fmt.Sprintf("%s%d", userPrefixes[prefixIdx], suffix)
}

// randomEvent generates one plausible economy claim. Roughly one event in
// twenty carries an out-of-policy amount so the validator has something
// to decline.
func randomEvent(totalUsers int) EconomyEvent {
	userID := getUserID(rand.Intn(totalUsers))

	switch rand.Intn(10) {
	case 0, 1:
		return EconomyEvent{
			Kind:   "purchase",
			UserID: userID,
			Purchase: &PurchasePayload{
				ItemType: "furniture",
				ItemID:   furnitureItems[rand.Intn(len(furnitureItems))],
				X:        rand.Float64() * 20,
				Z:        rand.Float64() * 20,
				Rotation: float64(rand.Intn(4)) * 90,
			},
		}
	case 2:
		return EconomyEvent{
			Kind:   "purchase",
			UserID: userID,
			Purchase: &PurchasePayload{
				ItemType: "staff",
				ItemID:   staffTypes[rand.Intn(len(staffTypes))],
			},
		}
	case 3:
		return EconomyEvent{
			Kind:   "level_up",
			UserID: userID,
		}
	case 4:
		return EconomyEvent{
			Kind:   "sync",
			UserID: userID,
			Client: &ClientPayload{
				Cash:     int64(rand.Intn(8000)),
				Diamonds: int64(rand.Intn(20)),
				XP:       int64(rand.Intn(500)),
				Level:    rand.Intn(5) + 1,
			},
		}
	default:
		amount := int64(rand.Intn(200) + 10)
		if rand.Intn(20) == 0 {
			// Oversized claim, should be declined
			amount = int64(rand.Intn(50000) + 10001)
		}
		return EconomyEvent{
			Kind:     "earn",
			UserID:   userID,
			Currency: "cash",
			Amount:   amount,
			Reason:   earnReasons[rand.Intn(len(earnReasons))],
		}
	}
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "economy-events", "Kafka topic")
	totalUsers := flag.Int("users", 500, "Total number of users to simulate")
	eventsPerSecond := flag.Int("rate", 100, "Events per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  🚀 Economy Event Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Total Users:      %d\n", *totalUsers)
	fmt.Printf("  Events/sec:       %d\n", *eventsPerSecond)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	// Send message helper
	sendEvent := func(event EconomyEvent) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.UserID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	fmt.Printf("Streaming events for %d users (%d/sec)\n", *totalUsers, *eventsPerSecond)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	interval := time.Second / time.Duration(*eventsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var eventCount int64

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nShutting down...")
			close(done)
			producer.AsyncClose()
			wg.Wait()
			fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\n\nDuration reached, shutting down...")
				close(done)
				producer.AsyncClose()
				wg.Wait()
				fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
				return
			}

			sendEvent(randomEvent(*totalUsers))
			atomic.AddInt64(&eventCount, 1)

		case <-statsTicker.C:
			events := atomic.LoadInt64(&eventCount)
			success := atomic.LoadInt64(&successCount)
			errors := atomic.LoadInt64(&errorCount)
			fmt.Printf("[%s] Events: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				events,
				success,
				errors,
			)
		}
	}
}
