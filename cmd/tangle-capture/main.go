// Command tangle-capture periodically screenshots a display and posts each
// frame to a tangled server as an observation note.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbinani/screenshot"
)

// Config holds capture configuration
type Config struct {
	ServerURL string
	Interval  time.Duration
	Display   int
	UserID    string
}

func main() {
	serverURL := flag.String("server", getEnv("TANGLE_URL", "http://localhost:8080"), "tangled API URL")
	interval := flag.Duration("interval", 30*time.Second, "Capture interval")
	display := flag.Int("display", 0, "Display number to capture")
	userID := flag.String("user", getEnv("USER", "unknown"), "User identifier")
	flag.Parse()

	config := Config{
		ServerURL: *serverURL,
		Interval:  *interval,
		Display:   *display,
		UserID:    *userID,
	}

	n := screenshot.NumActiveDisplays()
	if n == 0 {
		log.Fatal("No active displays found")
	}
	if config.Display >= n {
		log.Fatalf("Display %d not available (only %d displays)", config.Display, n)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()

	log.Printf("tangle-capture started (interval=%v, user=%s, display=%d)", config.Interval, config.UserID, config.Display)
	log.Printf("Posting to: %s", config.ServerURL)

	// Capture immediately on start
	if err := captureAndPost(config); err != nil {
		log.Printf("Initial capture error: %v", err)
	}

	for {
		select {
		case <-ticker.C:
			if err := captureAndPost(config); err != nil {
				log.Printf("Capture error: %v", err)
			}
		case <-stop:
			log.Println("Shutting down...")
			return
		}
	}
}

func captureAndPost(config Config) error {
	bounds := screenshot.GetDisplayBounds(config.Display)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}

	now := time.Now().UTC()
	note := map[string]any{
		"content": base64.StdEncoding.EncodeToString(buf.Bytes()),
		"key":     fmt.Sprintf("capture.%s.%d", config.UserID, now.UnixNano()),
		"tags":    []string{"screenshot", "capture:" + config.UserID},
	}

	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	resp, err := http.Post(
		config.ServerURL+"/api/notes",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("tangled returned %d", resp.StatusCode)
	}

	log.Printf("Captured: %s (%dx%d, %d bytes)", note["key"], bounds.Dx(), bounds.Dy(), buf.Len())
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
