// Package config loads and validates the configuration that drives a scrape
// run. One Config value is built at startup and passed by pointer into every
// component; nothing reads ambient globals.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PDF generation modes.
const (
	ModeScreenshot = "screenshot" // screenshot segments + OCR text layer
	ModePrint      = "print"      // browser print-to-PDF per section, merged
)

// Config is the full configuration surface.
type Config struct {
	Connect   ConnectConfig  `mapstructure:"connect" yaml:"connect"`
	Output    OutputConfig   `mapstructure:"output" yaml:"output"`
	Selectors SelectorConfig `mapstructure:"selectors" yaml:"selectors"`
	Timeouts  TimeoutConfig  `mapstructure:"timeouts" yaml:"timeouts"`
	Capture   CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	OCR       OCRConfig      `mapstructure:"ocr" yaml:"ocr"`
	PDF       PDFConfig      `mapstructure:"pdf" yaml:"pdf"`
	Verbose   bool           `mapstructure:"verbose" yaml:"verbose"`
}

// ConnectConfig locates the already-running browser.
type ConnectConfig struct {
	Host     string        `mapstructure:"host" yaml:"host"`
	Port     int           `mapstructure:"port" yaml:"port"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PageHint string        `mapstructure:"page_hint" yaml:"page_hint"` // URL substring selecting the active page
}

// OutputConfig controls where artifacts land.
type OutputConfig struct {
	Dir             string `mapstructure:"dir" yaml:"dir"`
	ScreenshotsDir  string `mapstructure:"screenshots_dir" yaml:"screenshots_dir"` // "" = <dir>/screenshots
	KeepScreenshots bool   `mapstructure:"keep_screenshots" yaml:"keep_screenshots"`
}

// Screenshots returns the effective screenshots directory.
func (o OutputConfig) Screenshots() string {
	if o.ScreenshotsDir != "" {
		return o.ScreenshotsDir
	}
	return filepath.Join(o.Dir, "screenshots")
}

// SessionFile returns the path of the manual-capture session state.
func (o OutputConfig) SessionFile() string {
	return filepath.Join(o.Dir, "session.json")
}

// SelectorConfig holds the CSS selectors used against the e-book DOM. The
// defaults match the reader this tool was written for; sites restyle, so all
// of them are overridable.
type SelectorConfig struct {
	TOCSidebar      string   `mapstructure:"toc_sidebar" yaml:"toc_sidebar"`
	ExpandedChapter string   `mapstructure:"expanded_chapter" yaml:"expanded_chapter"`
	SectionLinks    string   `mapstructure:"section_links" yaml:"section_links"`
	ActiveItem      string   `mapstructure:"active_item" yaml:"active_item"` // fallback when no chapter is expanded
	Dismiss         string   `mapstructure:"dismiss" yaml:"dismiss"`         // first-run overlays to close
	Content         []string `mapstructure:"content" yaml:"content"`         // candidates for the readable region, best first
}

// TimeoutConfig bounds every wait in the pipeline. Render latency is network-
// and content-dependent, so none of these are hardcoded.
type TimeoutConfig struct {
	Navigation      time.Duration `mapstructure:"navigation" yaml:"navigation"`
	ElementWait     time.Duration `mapstructure:"element_wait" yaml:"element_wait"`
	Settle          time.Duration `mapstructure:"settle" yaml:"settle"`
	ScrollDelay     time.Duration `mapstructure:"scroll_delay" yaml:"scroll_delay"`
	ScreenshotDelay time.Duration `mapstructure:"screenshot_delay" yaml:"screenshot_delay"`
}

// CaptureConfig shapes the scroll-and-screenshot loop.
type CaptureConfig struct {
	OverlapPx           int     `mapstructure:"overlap_px" yaml:"overlap_px"` // scroll step = viewport - overlap
	MaxSegments         int     `mapstructure:"max_segments" yaml:"max_segments"`
	SimilarityStop      bool    `mapstructure:"similarity_stop" yaml:"similarity_stop"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
}

// OCRConfig configures the external recognition engine.
type OCRConfig struct {
	Enabled       bool    `mapstructure:"enabled" yaml:"enabled"`
	TesseractPath string  `mapstructure:"tesseract_path" yaml:"tesseract_path"` // binary name or absolute path
	Language      string  `mapstructure:"language" yaml:"language"`
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence"` // words at or below this are dropped
}

// PDFConfig controls final assembly.
type PDFConfig struct {
	Mode          string      `mapstructure:"mode" yaml:"mode"` // screenshot | print
	DPI           int         `mapstructure:"dpi" yaml:"dpi"`   // page points = pixels * 72 / dpi
	Quality       int         `mapstructure:"quality" yaml:"quality"`
	MaxImageWidth int         `mapstructure:"max_image_width" yaml:"max_image_width"` // 0 = no downscale
	Validate      bool        `mapstructure:"validate" yaml:"validate"`
	Print         PrintConfig `mapstructure:"print" yaml:"print"`
}

// PrintConfig is the page geometry for print mode, in inches. The default
// page is deliberately tall so one section renders onto one page.
type PrintConfig struct {
	PaperWidth  float64 `mapstructure:"paper_width" yaml:"paper_width"`
	PaperHeight float64 `mapstructure:"paper_height" yaml:"paper_height"`
	Margin      float64 `mapstructure:"margin" yaml:"margin"`
	Scale       float64 `mapstructure:"scale" yaml:"scale"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Connect: ConnectConfig{
			Host:     "localhost",
			Port:     9222,
			Timeout:  10 * time.Second,
			PageHint: "/e-book",
		},
		Output: OutputConfig{
			Dir:             "output",
			ScreenshotsDir:  "",
			KeepScreenshots: true,
		},
		Selectors: SelectorConfig{
			TOCSidebar:      `[class*="TableOfContents"]`,
			ExpandedChapter: `[aria-expanded="true"]`,
			SectionLinks:    `a[href*="/e-book"]`,
			ActiveItem:      `[aria-selected="true"], [class*="selected"], [class*="active"]`,
			Dismiss:         `[class*="NavigationInstructions"] button, [aria-label="Close"]`,
			Content: []string{
				`[class*="EbookContent"]`,
				`[class*="ebook-content"]`,
				`[class*="PageContent"]`,
				`[class*="page-content"]`,
				`main`,
				`article`,
				`[role="main"]`,
				`.content`,
			},
		},
		Timeouts: TimeoutConfig{
			Navigation:      30 * time.Second,
			ElementWait:     10 * time.Second,
			Settle:          2 * time.Second,
			ScrollDelay:     500 * time.Millisecond,
			ScreenshotDelay: 300 * time.Millisecond,
		},
		Capture: CaptureConfig{
			OverlapPx:           120,
			MaxSegments:         50,
			SimilarityStop:      true,
			SimilarityThreshold: 0.98,
		},
		OCR: OCRConfig{
			Enabled:       true,
			TesseractPath: "tesseract",
			Language:      "eng",
			MinConfidence: 30,
		},
		PDF: PDFConfig{
			Mode:          ModeScreenshot,
			DPI:           150,
			Quality:       95,
			MaxImageWidth: 0,
			Validate:      true,
			Print: PrintConfig{
				PaperWidth:  8.27,
				PaperHeight: 200,
				Margin:      0.2,
				Scale:       0.9,
			},
		},
	}
}

// Load builds the configuration: defaults, then an optional YAML file, then
// BOOKSHOT_* environment overrides. cfgFile may be empty, in which case
// ./config.yaml and $HOME/.bookshot/config.yaml are tried; a missing file is
// not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BOOKSHOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.bookshot")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("connect.host", d.Connect.Host)
	v.SetDefault("connect.port", d.Connect.Port)
	v.SetDefault("connect.timeout", d.Connect.Timeout)
	v.SetDefault("connect.page_hint", d.Connect.PageHint)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.screenshots_dir", d.Output.ScreenshotsDir)
	v.SetDefault("output.keep_screenshots", d.Output.KeepScreenshots)

	v.SetDefault("selectors.toc_sidebar", d.Selectors.TOCSidebar)
	v.SetDefault("selectors.expanded_chapter", d.Selectors.ExpandedChapter)
	v.SetDefault("selectors.section_links", d.Selectors.SectionLinks)
	v.SetDefault("selectors.active_item", d.Selectors.ActiveItem)
	v.SetDefault("selectors.dismiss", d.Selectors.Dismiss)
	v.SetDefault("selectors.content", d.Selectors.Content)

	v.SetDefault("timeouts.navigation", d.Timeouts.Navigation)
	v.SetDefault("timeouts.element_wait", d.Timeouts.ElementWait)
	v.SetDefault("timeouts.settle", d.Timeouts.Settle)
	v.SetDefault("timeouts.scroll_delay", d.Timeouts.ScrollDelay)
	v.SetDefault("timeouts.screenshot_delay", d.Timeouts.ScreenshotDelay)

	v.SetDefault("capture.overlap_px", d.Capture.OverlapPx)
	v.SetDefault("capture.max_segments", d.Capture.MaxSegments)
	v.SetDefault("capture.similarity_stop", d.Capture.SimilarityStop)
	v.SetDefault("capture.similarity_threshold", d.Capture.SimilarityThreshold)

	v.SetDefault("ocr.enabled", d.OCR.Enabled)
	v.SetDefault("ocr.tesseract_path", d.OCR.TesseractPath)
	v.SetDefault("ocr.language", d.OCR.Language)
	v.SetDefault("ocr.min_confidence", d.OCR.MinConfidence)

	v.SetDefault("pdf.mode", d.PDF.Mode)
	v.SetDefault("pdf.dpi", d.PDF.DPI)
	v.SetDefault("pdf.quality", d.PDF.Quality)
	v.SetDefault("pdf.max_image_width", d.PDF.MaxImageWidth)
	v.SetDefault("pdf.validate", d.PDF.Validate)
	v.SetDefault("pdf.print.paper_width", d.PDF.Print.PaperWidth)
	v.SetDefault("pdf.print.paper_height", d.PDF.Print.PaperHeight)
	v.SetDefault("pdf.print.margin", d.PDF.Print.Margin)
	v.SetDefault("pdf.print.scale", d.PDF.Print.Scale)

	v.SetDefault("verbose", d.Verbose)
}

// Validate rejects configurations no run could succeed with.
func (c *Config) Validate() error {
	if c.Connect.Host == "" {
		return fmt.Errorf("config: connect.host must not be empty")
	}
	if c.Connect.Port <= 0 || c.Connect.Port > 65535 {
		return fmt.Errorf("config: connect.port %d out of range", c.Connect.Port)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("config: output.dir must not be empty")
	}
	if c.Timeouts.Navigation <= 0 || c.Timeouts.ElementWait <= 0 {
		return fmt.Errorf("config: navigation and element_wait timeouts must be positive")
	}
	if c.Capture.OverlapPx < 0 {
		return fmt.Errorf("config: capture.overlap_px must not be negative")
	}
	if c.Capture.MaxSegments <= 0 {
		return fmt.Errorf("config: capture.max_segments must be positive")
	}
	if c.Capture.SimilarityThreshold <= 0 || c.Capture.SimilarityThreshold > 1 {
		return fmt.Errorf("config: capture.similarity_threshold %g out of (0, 1]", c.Capture.SimilarityThreshold)
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 100 {
		return fmt.Errorf("config: ocr.min_confidence %g out of [0, 100]", c.OCR.MinConfidence)
	}
	if c.PDF.Mode != ModeScreenshot && c.PDF.Mode != ModePrint {
		return fmt.Errorf("config: pdf.mode %q (want %q or %q)", c.PDF.Mode, ModeScreenshot, ModePrint)
	}
	if c.PDF.DPI <= 0 {
		return fmt.Errorf("config: pdf.dpi must be positive")
	}
	if c.PDF.Quality < 0 || c.PDF.Quality > 100 {
		return fmt.Errorf("config: pdf.quality %d out of [0, 100]", c.PDF.Quality)
	}
	if c.PDF.Mode == ModePrint {
		p := c.PDF.Print
		if p.PaperWidth <= 0 || p.PaperHeight <= 0 {
			return fmt.Errorf("config: pdf.print paper size must be positive")
		}
		if p.Scale < 0.1 || p.Scale > 2 {
			return fmt.Errorf("config: pdf.print.scale %g out of [0.1, 2]", p.Scale)
		}
	}
	return nil
}
