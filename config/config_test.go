package config_test

import (
	"testing"

	"github.com/Skryldev/image-loader/config"
)

func TestDefaultValidates(t *testing.T) {
	if err := config.Validate(config.Default()); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero source resolution", func(c *config.Config) { c.SourceResolution = 0 }},
		{"negative target resolution", func(c *config.Config) { c.TargetResolution = -1 }},
		{"zero peek window", func(c *config.Config) { c.HeaderPeekBytes = 0 }},
		{"zero batch workers", func(c *config.Config) { c.BatchWorkers = 0 }},
		{"negative raw byte cap", func(c *config.Config) { c.MaxRawBytes = -1 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := config.Default()
			c.mutate(&cfg)
			if err := config.Validate(cfg); err == nil {
				t.Error("want validation error")
			}
		})
	}
}
