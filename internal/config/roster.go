package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/sensorhub/internal/domain"
)

// RosterFile — формат YAML-файла ростера:
//
//	sensors:
//	  - address: 0x40
//	    name: Greenhouse
//	  - address: 0x41
//	    active: false
type RosterFile struct {
	Sensors []RosterEntry `yaml:"sensors"`
}

// RosterEntry — описание одного датчика в файле.
// Active по умолчанию true.
type RosterEntry struct {
	Address uint8  `yaml:"address"`
	Name    string `yaml:"name"`
	Active  *bool  `yaml:"active"`
}

// LoadRosterFile читает ростер из YAML-файла.
func LoadRosterFile(path string) (*domain.Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster разбирает YAML-описание ростера.
func ParseRoster(data []byte) (*domain.Roster, error) {
	var file RosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	sensors := make([]domain.Sensor, len(file.Sensors))
	for i, e := range file.Sensors {
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		sensors[i] = domain.Sensor{
			Address: e.Address,
			Name:    e.Name,
			Active:  active,
		}
	}

	roster, err := domain.NewRoster(sensors)
	if err != nil {
		return nil, fmt.Errorf("build roster: %w", err)
	}
	return roster, nil
}
