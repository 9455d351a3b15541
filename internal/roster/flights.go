package roster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Flight is one line of a flight list: an aircraft id flying from one
// registered airport to another.
type Flight struct {
	ID          string `toml:"id" json:"id"`
	Origin      string `toml:"origin" json:"origin"`
	Destination string `toml:"destination" json:"destination"`
}

// SkippedLine records a malformed flight-list line.
type SkippedLine struct {
	Line   int
	Text   string
	Reason string
}

// ParseFlights reads "ID ORIGIN DESTINATION" lines. Blank lines and lines
// starting with '#' are ignored; malformed lines are skipped and reported.
func ParseFlights(r io.Reader) ([]Flight, []SkippedLine, error) {
	var flights []Flight
	var skipped []SkippedLine

	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		switch {
		case len(fields) != 3:
			skipped = append(skipped, SkippedLine{Line: n, Text: text, Reason: fmt.Sprintf("want 3 fields, got %d", len(fields))})
		case fields[1] == fields[2]:
			skipped = append(skipped, SkippedLine{Line: n, Text: text, Reason: "origin equals destination"})
		default:
			flights = append(flights, Flight{ID: fields[0], Origin: fields[1], Destination: fields[2]})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read flight list: %w", err)
	}
	return flights, skipped, nil
}

// LoadFlights parses a flight-list file.
func LoadFlights(path string) ([]Flight, []SkippedLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open flight list: %w", err)
	}
	defer f.Close()
	return ParseFlights(f)
}
