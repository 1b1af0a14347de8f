package dataset

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Sources names where each dataset lives.
type Sources struct {
	Sessions string
	Meta     string
	Google   string
}

// LoadSources reads an INI file with [sessions], [meta] and [google] sections,
// each holding a uri key. Only sessions is required.
//
//	[sessions]
//	uri = s3://exports/shopify/sessions.csv
func LoadSources(path string) (Sources, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return Sources{}, fmt.Errorf("unable to load sources file: %w", err)
	}

	uri := func(name string) string {
		section, err := cfg.GetSection(name)
		if err != nil {
			return ""
		}
		return section.Key("uri").String()
	}

	sources := Sources{
		Sessions: uri("sessions"),
		Meta:     uri("meta"),
		Google:   uri("google"),
	}
	if sources.Sessions == "" {
		return Sources{}, fmt.Errorf("sources file %s has no [sessions] uri", path)
	}
	return sources, nil
}
