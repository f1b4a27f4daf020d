package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const starterHeader = `# bookshot configuration.
#
# Start Chrome with --remote-debugging-port=<connect.port>, log in, open the
# e-book and expand the chapter you want captured, then run bookshot.
# Every key below shows its default. Environment variables override this
# file (BOOKSHOT_CONNECT_PORT=9333, BOOKSHOT_OCR_ENABLED=false, ...).

`

// WriteStarter writes the default configuration to path as a starting point
// for editing. It refuses to overwrite an existing file.
func WriteStarter(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("config: marshal defaults: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(starterHeader), data...), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// MarshalYAML renders the connect timeout in its human form ("10s").
func (c ConnectConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Timeout  string `yaml:"timeout"`
		PageHint string `yaml:"page_hint"`
	}{c.Host, c.Port, c.Timeout.String(), c.PageHint}, nil
}

// MarshalYAML renders every wait in its human form ("30s", "500ms").
func (t TimeoutConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Navigation      string `yaml:"navigation"`
		ElementWait     string `yaml:"element_wait"`
		Settle          string `yaml:"settle"`
		ScrollDelay     string `yaml:"scroll_delay"`
		ScreenshotDelay string `yaml:"screenshot_delay"`
	}{
		t.Navigation.String(),
		t.ElementWait.String(),
		t.Settle.String(),
		t.ScrollDelay.String(),
		t.ScreenshotDelay.String(),
	}, nil
}
