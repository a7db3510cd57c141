// Command rustle-extract scans a source tree for translatable text, maintains
// the master translation record, and writes per-language locale files.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/rustledotdev/rustle"
	"github.com/rustledotdev/rustle/api"
	"github.com/rustledotdev/rustle/extract"
	"github.com/rustledotdev/rustle/provider"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = rustle.Version
	commit    = rustle.GitCommit
	buildDate = rustle.BuildDate
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("rustle-extract", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// Flags
	src := fs.String("src", "./src", "Source directory to scan")
	output := fs.String("output", "./public/rustle", "Output directory for the master record and locale files")
	sourceLang := fs.String("source-lang", "en", "Source language code")
	targetLangs := fs.String("target-langs", "es,fr,de,it,pt", "Comma-separated target language codes")
	configPath := fs.String("config", extract.ConfigFileName, "Project config file (flags take precedence)")
	model := fs.String("model", "", "Model override sent with translation requests")
	debug := fs.Bool("debug", false, "Verbose scan output")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	showVersion := fs.Bool("version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "%s %s\n", rustle.Name, version)
		if commit != "unknown" && commit != "" {
			fmt.Fprintf(stdout, "  commit:  %s\n", commit)
		}
		if buildDate != "unknown" && buildDate != "" {
			fmt.Fprintf(stdout, "  built:   %s\n", buildDate)
		}
		return nil
	}

	targets := splitLangs(*targetLangs)
	defaults := extract.Config{
		SrcDir:      "./src",
		OutputDir:   "./public/rustle",
		SourceLang:  "en",
		TargetLangs: splitLangs("es,fr,de,it,pt"),
	}
	cfg := extract.Config{
		SrcDir:      *src,
		OutputDir:   *output,
		SourceLang:  *sourceLang,
		TargetLangs: targets,
		Model:       *model,
		Debug:       *debug,
	}

	fileCfg, err := extract.LoadFileConfig(*configPath)
	if err != nil {
		return err
	}
	fileCfg.Merge(&cfg, defaults)

	cfg.Logf = func(format string, args ...any) {
		fmt.Fprintf(stderr, format+"\n", args...)
	}
	if !*quiet {
		bars := make(map[string]*progressbar.ProgressBar)
		cfg.Progress = func(lang string, done, total int) {
			bar, ok := bars[lang]
			if !ok {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(stderr),
					progressbar.OptionSetDescription("translating "+lang),
					progressbar.OptionClearOnFinish(),
				)
				bars[lang] = bar
			}
			_ = bar.Set(done)
		}
	}

	translator, backend, err := buildTranslator(fileCfg, *model)
	if err != nil {
		return err
	}

	engine, err := extract.NewEngine(cfg, translator)
	if err != nil {
		return err
	}

	if !*quiet {
		fmt.Fprintf(stderr, "Extracting from %s into %s (%s -> %s)\n",
			color.CyanString(cfg.SrcDir), color.CyanString(cfg.OutputDir),
			cfg.SourceLang, strings.Join(cfg.TargetLangs, ", "))
		if translator == nil {
			fmt.Fprintf(stderr, "%s no API credentials found; locale files will hold source text\n",
				color.YellowString("note:"))
		} else if *debug {
			fmt.Fprintf(stderr, "using %s backend\n", backend)
		}
	}

	summary, err := engine.Run(context.Background())
	if err != nil {
		return err
	}

	if !*quiet {
		printSummary(stderr, cfg, summary)
	}
	return nil
}

// buildTranslator picks the translation backend from the environment: the
// rustle API when RUSTLE_API_KEY is set, a direct OpenAI provider when only
// OPENAI_API_KEY is, and none otherwise. Extraction still works without a
// backend; locale files then carry source text.
func buildTranslator(fileCfg *extract.FileConfig, model string) (rustle.BatchTranslator, string, error) {
	if key := os.Getenv("RUSTLE_API_KEY"); key != "" {
		baseURL := os.Getenv("RUSTLE_API_URL")
		if baseURL == "" && fileCfg != nil {
			baseURL = fileCfg.APIURL
		}
		client, err := api.NewClient(api.Config{
			APIKey:  key,
			BaseURL: baseURL,
			Model:   model,
		})
		if err != nil {
			return nil, "", fmt.Errorf("configuring API client: %w", err)
		}
		return client, "rustle API", nil
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey: key,
			Model:  model,
		}), "OpenAI", nil
	}

	return nil, "", nil
}

func printSummary(w io.Writer, cfg extract.Config, summary *extract.Summary) {
	fmt.Fprintf(w, "\n%s\n", color.GreenString("Done."))
	fmt.Fprintf(w, "  Files scanned: %d\n", summary.FilesScanned)
	fmt.Fprintf(w, "  New:           %d\n", summary.New)
	fmt.Fprintf(w, "  Updated:       %d\n", summary.Updated)
	fmt.Fprintf(w, "  Unchanged:     %d\n", summary.Unchanged)
	for _, lang := range cfg.TargetLangs {
		translated := summary.Translated[lang]
		fallbacks := summary.Fallbacks[lang]
		switch {
		case fallbacks > 0:
			fmt.Fprintf(w, "  %s: %d translated, %s\n", lang, translated,
				color.YellowString("%d source-text fallbacks", fallbacks))
		case translated > 0:
			fmt.Fprintf(w, "  %s: %d translated\n", lang, translated)
		}
	}
}

func splitLangs(csv string) []string {
	var langs []string
	for _, lang := range strings.Split(csv, ",") {
		lang = strings.TrimSpace(lang)
		if lang != "" {
			langs = append(langs, lang)
		}
	}
	return langs
}
