package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bookshot/bookshot/internal/config"
	"github.com/bookshot/bookshot/internal/scrape"
	"github.com/bookshot/bookshot/internal/toc"
)

var version = "dev"

var (
	cfgFile         string
	port            int
	outputDir       string
	noOCR           bool
	keepScreenshots bool
	verbose         bool
	manualMode      bool
	assembleOnly    bool
	showStatus      bool
	clearSession    bool
	initConfig      bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "bookshot",
		Short: "Capture an e-book chapter from a logged-in browser into a searchable PDF",
		Long: `bookshot attaches to a Chrome you already started with
--remote-debugging-port, reads the section list of the chapter you expanded
in the e-book's sidebar, screenshots every section, and assembles the
screenshots into one searchable PDF with an invisible OCR text layer.

Before running:
  1. Start Chrome:  chrome --remote-debugging-port=9222
  2. Log in and open the e-book
  3. Expand the chapter you want captured

Then:
  bookshot`,
		Args:          cobra.NoArgs,
		RunE:          run,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "Config file (default ./config.yaml, then ~/.bookshot/config.yaml)")
	rootCmd.Flags().IntVar(&port, "port", 0, "Chrome remote debugging port (overrides config)")
	rootCmd.Flags().StringVar(&outputDir, "output", "", "Output directory (overrides config)")
	rootCmd.Flags().BoolVar(&noOCR, "no-ocr", false, "Skip OCR; produce image-only pages")
	rootCmd.Flags().BoolVar(&keepScreenshots, "keep-screenshots", true, "Keep segment PNGs after the PDF is written")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")
	rootCmd.Flags().BoolVar(&manualMode, "manual", false, "Interactive capture: you drive the page, bookshot screenshots on command")
	rootCmd.Flags().BoolVar(&assembleOnly, "assemble-only", false, "Assemble the saved manual session into a PDF, without the browser")
	rootCmd.Flags().BoolVar(&showStatus, "status", false, "Show the saved manual session")
	rootCmd.Flags().BoolVar(&clearSession, "clear", false, "Delete the saved manual session and its screenshots")
	rootCmd.Flags().BoolVar(&initConfig, "init-config", false, "Write a starter config.yaml and exit")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printHint(err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if initConfig {
		path := cfgFile
		if path == "" {
			path = "config.yaml"
		}
		if err := config.WriteStarter(path); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %s\n", path)
		return nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Connect.Port = port
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if noOCR {
		cfg.OCR.Enabled = false
	}
	if cmd.Flags().Changed("keep-screenshots") {
		cfg.Output.KeepScreenshots = keepScreenshots
	}
	if verbose {
		cfg.Verbose = true
	}

	switch {
	case showStatus:
		return scrape.Status(cfg, os.Stdout)
	case clearSession:
		return scrape.Clear(cfg)
	case assembleOnly:
		res, err := scrape.AssembleSession(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Saved to %s (%d pages, %.1f MB)\n",
			res.Path, res.Pages, float64(res.Size)/(1024*1024))
		return nil
	case manualMode:
		return scrape.Manual(cfg, os.Stdin)
	}

	summary, err := scrape.Run(cfg)
	if summary != nil {
		summary.Print(os.Stdout)
	}
	return err
}

// printHint follows fatal errors with what the user can do about them; every
// failure cause here is outside the program.
func printHint(err error) {
	switch {
	case errors.Is(err, scrape.ErrConnect):
		fmt.Fprintln(os.Stderr, "\nNo debuggable Chrome found. Close Chrome fully, then relaunch it with:")
		fmt.Fprintln(os.Stderr, "  chrome --remote-debugging-port=9222")
		fmt.Fprintln(os.Stderr, "and open the e-book before running bookshot again.")
	case errors.Is(err, toc.ErrNoSections):
		fmt.Fprintln(os.Stderr, "\nNo section links were found in the sidebar. Make sure the e-book's")
		fmt.Fprintln(os.Stderr, "table of contents is visible and the chapter you want is expanded.")
		fmt.Fprintln(os.Stderr, "For pages the sidebar cannot reach, try: bookshot --manual")
	case errors.Is(err, scrape.ErrNoSession):
		fmt.Fprintln(os.Stderr, "\nStart a manual capture first: bookshot --manual")
	}
}
