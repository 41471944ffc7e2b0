package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// District is a serviced city district and the staff section handling it.
type District struct {
	Name    string   `yaml:"name"`
	Section string   `yaml:"section"`
	Phones  []string `yaml:"phones"`
}

// Directory maps districts to staff sections, sections to staff chats,
// and lists the admin user ids.
type Directory struct {
	Districts  []District       `yaml:"districts"`
	StaffChats map[string]int64 `yaml:"staff_chats"`
	Admins     []int64          `yaml:"admins"`
}

// LoadDirectory parses the district directory YAML document.
func LoadDirectory(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read district directory: %w", err)
	}
	var dir Directory
	if err := yaml.Unmarshal(raw, &dir); err != nil {
		return nil, fmt.Errorf("parse district directory: %w", err)
	}
	if err := dir.Validate(); err != nil {
		return nil, err
	}
	return &dir, nil
}

// Validate checks that every district routes to a known staff chat.
func (d *Directory) Validate() error {
	if len(d.Districts) == 0 {
		return fmt.Errorf("district directory has no districts")
	}
	seen := make(map[string]bool, len(d.Districts))
	for _, district := range d.Districts {
		if district.Name == "" {
			return fmt.Errorf("district without a name")
		}
		if seen[district.Name] {
			return fmt.Errorf("duplicate district %q", district.Name)
		}
		seen[district.Name] = true
		if _, ok := d.StaffChats[district.Section]; !ok {
			return fmt.Errorf("district %q: section %q has no staff chat", district.Name, district.Section)
		}
	}
	return nil
}

func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.Districts))
	for _, district := range d.Districts {
		names = append(names, district.Name)
	}
	return names
}

func (d *Directory) Lookup(name string) (District, bool) {
	for _, district := range d.Districts {
		if district.Name == name {
			return district, true
		}
	}
	return District{}, false
}

// Phones returns the contact numbers of a district, or nil.
func (d *Directory) Phones(name string) []string {
	district, _ := d.Lookup(name)
	return district.Phones
}

// SectionOf returns the staff section of a district.
func (d *Directory) SectionOf(name string) string {
	district, _ := d.Lookup(name)
	return district.Section
}

// StaffChat returns the staff chat handling a district.
func (d *Directory) StaffChat(name string) (int64, bool) {
	district, ok := d.Lookup(name)
	if !ok {
		return 0, false
	}
	chatID, ok := d.StaffChats[district.Section]
	return chatID, ok
}

// SectionOfChat returns the section whose staff chat is chatID.
func (d *Directory) SectionOfChat(chatID int64) (string, bool) {
	for section, id := range d.StaffChats {
		if id == chatID {
			return section, true
		}
	}
	return "", false
}

// Sections lists every section with a staff chat.
func (d *Directory) Sections() []string {
	sections := make([]string, 0, len(d.StaffChats))
	for section := range d.StaffChats {
		sections = append(sections, section)
	}
	return sections
}

func (d *Directory) IsAdmin(userID int64) bool {
	for _, id := range d.Admins {
		if id == userID {
			return true
		}
	}
	return false
}
