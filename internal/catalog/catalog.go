// Package catalog supplies the activities the directory is seeded with at startup.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/activitydirectory/internal/domain"
)

// File is the on-disk shape of a catalog.
type File struct {
	Activities []Entry `yaml:"activities"`
}

// Entry describes one activity in a catalog file.
type Entry struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Schedule        string   `yaml:"schedule"`
	MaxParticipants int      `yaml:"max_participants"`
	Participants    []string `yaml:"participants"`
}

// Load returns the activities in path, or Default when path is empty.
func Load(path string) ([]domain.Activity, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile parses a YAML catalog.
func LoadFile(path string) ([]domain.Activity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML catalog document.
func Parse(raw []byte) ([]domain.Activity, error) {
	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(file.Activities) == 0 {
		return nil, errors.New("catalog has no activities")
	}

	seen := make(map[string]struct{}, len(file.Activities))
	out := make([]domain.Activity, 0, len(file.Activities))
	for i, e := range file.Activities {
		if e.Name == "" {
			return nil, fmt.Errorf("activity %d: name is required", i)
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("activity %q: duplicate name", e.Name)
		}
		if e.MaxParticipants <= 0 {
			return nil, fmt.Errorf("activity %q: max_participants must be > 0", e.Name)
		}
		seen[e.Name] = struct{}{}
		out = append(out, domain.Activity{
			Name:            e.Name,
			Description:     e.Description,
			Schedule:        e.Schedule,
			MaxParticipants: e.MaxParticipants,
			Participants:    append([]string{}, e.Participants...),
		})
	}
	return out, nil
}

// Default returns the Mergington High School activities.
func Default() []domain.Activity {
	return []domain.Activity{
		{
			Name:            "Chess Club",
			Description:     "Learn strategies and compete in chess tournaments",
			Schedule:        "Fridays, 3:30 PM - 5:00 PM",
			MaxParticipants: 12,
			Participants:    []string{"michael@mergington.edu", "daniel@mergington.edu"},
		},
		{
			Name:            "Programming Class",
			Description:     "Learn programming fundamentals and build software projects",
			Schedule:        "Tuesdays and Thursdays, 3:30 PM - 4:30 PM",
			MaxParticipants: 20,
			Participants:    []string{"emma@mergington.edu", "sophia@mergington.edu"},
		},
		{
			Name:            "Gym Class",
			Description:     "Physical education and sports activities",
			Schedule:        "Mondays, Wednesdays, Fridays, 2:00 PM - 3:00 PM",
			MaxParticipants: 30,
			Participants:    []string{"john@mergington.edu", "olivia@mergington.edu"},
		},
		{
			Name:            "Basketball Team",
			Description:     "Join the basketball team and compete in local tournaments",
			Schedule:        "Mondays and Wednesdays, 4:00 PM - 6:00 PM",
			MaxParticipants: 15,
			Participants:    []string{},
		},
		{
			Name:            "Soccer Club",
			Description:     "Practice soccer skills and participate in matches",
			Schedule:        "Tuesdays and Thursdays, 5:00 PM - 7:00 PM",
			MaxParticipants: 20,
			Participants:    []string{},
		},
		{
			Name:            "Debate Club",
			Description:     "Engage in debates and improve public speaking skills",
			Schedule:        "Fridays, 3:00 PM - 5:00 PM",
			MaxParticipants: 10,
			Participants:    []string{},
		},
		{
			Name:            "Science Club",
			Description:     "Explore scientific concepts and conduct experiments",
			Schedule:        "Thursdays, 3:30 PM - 5:00 PM",
			MaxParticipants: 15,
			Participants:    []string{},
		},
		{
			Name:            "Art Class",
			Description:     "Learn various art techniques and create your own masterpieces",
			Schedule:        "Wednesdays, 4:00 PM - 6:00 PM",
			MaxParticipants: 20,
			Participants:    []string{},
		},
		{
			Name:            "Music Band",
			Description:     "Join the school band and perform at events",
			Schedule:        "Tuesdays, 4:00 PM - 6:00 PM",
			MaxParticipants: 25,
			Participants:    []string{},
		},
	}
}
