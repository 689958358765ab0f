// rosetta-mark — incremental AI translation for structured text documents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seewhyme/rosetta-mark/config"
	"github.com/seewhyme/rosetta-mark/engine"
	"github.com/seewhyme/rosetta-mark/i18n"
	"github.com/seewhyme/rosetta-mark/langmeta"
	"github.com/seewhyme/rosetta-mark/mapping"
	"github.com/seewhyme/rosetta-mark/segment"
	"github.com/seewhyme/rosetta-mark/settings"
	"github.com/seewhyme/rosetta-mark/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rosetta-mark",
		Short: "Incremental AI translation for structured text documents",
		Long: `rosetta-mark — incremental AI translation for structured text documents.

Documents are split into paragraphs, code blocks, and front matter. Each
paragraph's translation is cached by content hash in a .rosetta/ sidecar
directory, so re-running translation after an edit only sends the changed
paragraphs to the provider. Code blocks and front matter pass through
untouched.

Commands:
  translate   Translate a document (incremental, cache-aware)
  reverse     Translate hand edits in a translated document back to source
  status      Show cache statistics for a document
  detect      Detect the language of a document
  auth        Manage provider API keys

AI Providers:
  openai         OpenAI — API key
  gemini         Google AI (Gemini) — API key
  anthropic      Anthropic — API key
  groq           Groq — API key
  ollama         Ollama local server
  custom-openai  Custom OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")

	root.AddCommand(
		newTranslateCmd(),
		newReverseCmd(),
		newStatusCmd(),
		newDetectCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		if translate.IsCancelled(err) {
			logWarning("%s", i18n.T("Translation cancelled"))
			os.Exit(130)
		}
		logError("%v", err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ---------------------------------------------------------------------------
// Shared setup
// ---------------------------------------------------------------------------

// buildProvider resolves the provider configuration from project config,
// stored credentials, and flag overrides.
func buildProvider(proj *config.Project, apiKey string) (translate.Provider, error) {
	providers := translate.DefaultProviders()
	prov, ok := providers[proj.Provider]
	if !ok {
		return translate.Provider{}, fmt.Errorf("unknown provider %q", proj.Provider)
	}
	if proj.Model != "" {
		prov.Model = proj.Model
	}
	if proj.BaseURL != "" {
		prov.BaseURL = proj.BaseURL
	} else if stored := settings.BaseURL(prov.ID); stored != "" {
		prov.BaseURL = stored
	}
	prov.APIKey = settings.APIKey(prov.ID, apiKey)

	if prov.APIKey == "" && prov.ID != translate.ProviderOllama {
		return translate.Provider{}, fmt.Errorf(
			"no API key for %s (use --api-key, ROSETTA_API_KEY, or `rosetta-mark auth set %s`)",
			prov.Name, prov.ID)
	}
	if prov.BaseURL == "" && prov.ID == translate.ProviderCustomOpenAI {
		return translate.Provider{}, fmt.Errorf("custom-openai requires --base-url")
	}
	return prov, nil
}

// buildEngine wires a client, retry policy, and progress channel into an
// engine for one operation.
func buildEngine(proj *config.Project, prov translate.Provider, events chan<- engine.Event) *engine.Engine {
	retry := translate.DefaultRetryPolicy()
	retry.MaxAttempts = proj.MaxRetries

	return engine.New(engine.Config{
		Client:       translate.NewClient(prov),
		Concurrency:  proj.Concurrency,
		Retry:        retry,
		SystemPrompt: proj.SystemPrompt,
		MaxTokens:    proj.MaxTokens,
		Events:       events,
	})
}

// watchProgress prints unit-level progress until the channel closes.
func watchProgress(events <-chan engine.Event, done chan<- struct{}) {
	for ev := range events {
		switch ev.Kind {
		case engine.EventUnitDone:
			logInfo("translated %d/%d", ev.Completed, ev.Total)
		case engine.EventRetryWait:
			logWarning("provider busy, retrying in %s", ev.Delay)
		}
	}
	close(done)
}

// outputPath derives the translated file path: doc.md -> doc.fr.md.
func outputPath(sourcePath, lang string) string {
	ext := filepath.Ext(sourcePath)
	base := strings.TrimSuffix(sourcePath, ext)
	return base + "." + lang + ext
}

// ---------------------------------------------------------------------------
// translate command
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		apiKey string
		output string
	)

	cmd := &cobra.Command{
		Use:   "translate <file>",
		Short: "Translate a document (incremental, cache-aware)",
		Long: `Translate a document using an AI provider.

Only paragraphs whose content changed since the last run are sent to the
provider; everything else is reused from the .rosetta/ cache. Code blocks
and front matter are never translated.

Examples:
  # Translate into French with OpenAI
  rosetta-mark translate README.md --target-lang fr

  # Use Gemini with higher concurrency
  rosetta-mark translate docs/guide.md --target-lang de --provider gemini --concurrency 6

  # Custom endpoint
  rosetta-mark translate notes.md --target-lang ja --provider custom-openai --base-url https://llm.internal/v1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := config.Load(rootDir, cmd.Flags())
			if err != nil {
				return err
			}
			if proj.TargetLang == "" {
				return fmt.Errorf("no target language (use --target-lang or target_lang in rosetta.yaml)")
			}
			return runTranslate(args[0], proj, apiKey, output)
		},
	}

	addEngineFlags(cmd)
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or ROSETTA_API_KEY env var)")
	cmd.Flags().StringVar(&output, "output", "", "Output file (default: <name>.<lang>.<ext>)")
	return cmd
}

// addEngineFlags registers the flags shared by translate and reverse.
// config.Load binds each one to its matching rosetta.yaml key.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("target-lang", "", "Target language code (e.g. fr, de, ja)")
	cmd.Flags().String("source-lang", "", "Source language code (default: auto-detect)")
	cmd.Flags().String("provider", "", "AI provider: openai, gemini, anthropic, groq, ollama, custom-openai")
	cmd.Flags().String("model", "", "Model name (provider default if empty)")
	cmd.Flags().String("base-url", "", "Custom API base URL")
	cmd.Flags().Int("concurrency", 3, "Concurrent translation calls (1-10)")
	cmd.Flags().Int("max-retries", 3, "Retry attempts per paragraph")
	cmd.Flags().Int("max-tokens", 100000, "Document size limit in estimated tokens")
	cmd.Flags().String("system-prompt", "", "Custom system prompt (use {{targetLang}} placeholder)")
}

func runTranslate(path string, proj *config.Project, apiKey, output string) error {
	targetLang := langmeta.Resolve(proj.TargetLang)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	doc := string(data)

	prov, err := buildProvider(proj, apiKey)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	store := mapping.NewStore(rootDir)
	prior, err := store.Load(path, targetLang)
	if err != nil {
		return err
	}

	events := make(chan engine.Event, 64)
	done := make(chan struct{})
	go watchProgress(events, done)

	eng := buildEngine(proj, prov, events)

	sourceLang := proj.SourceLang
	detected := false
	if sourceLang == "" {
		sourceLang = detectSourceLang(ctx, prov, doc, prior)
		detected = sourceLang != ""
	}

	result, err := eng.Translate(ctx, engine.Task{
		Document:       doc,
		Prior:          prior,
		SourcePath:     path,
		SourceLanguage: sourceLang,
		SourceDetected: detected,
		TargetLanguage: targetLang,
	})
	close(events)
	<-done
	if err != nil {
		return err
	}

	outPath := output
	if outPath == "" {
		outPath = outputPath(path, targetLang)
	}
	if err := os.WriteFile(outPath, []byte(result.Output+"\n"), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	if err := store.Save(path, targetLang, result.Mapping); err != nil {
		return err
	}

	if result.DispatchedCount == 0 {
		logInfo("%s", i18n.T("Nothing to translate: all paragraphs reused from cache"))
	} else {
		logInfo("%s, %s",
			fmt.Sprintf(i18n.N("translated %d paragraph", "translated %d paragraphs", result.DispatchedCount), result.DispatchedCount),
			fmt.Sprintf(i18n.N("reused %d paragraph", "reused %d paragraphs", result.ReusedCount), result.ReusedCount))
		logInfo("tokens: %d prompt, %d completion, %d total",
			result.Usage.Prompt, result.Usage.Completion, result.Usage.Total)
	}
	logSuccess("%s: %s", i18n.T("Translation complete"), outPath)
	return nil
}

// detectSourceLang reuses a recent detection from the prior mapping when
// available, otherwise asks the provider. Detection is best-effort: on
// failure the language stays blank rather than failing the run.
func detectSourceLang(ctx context.Context, prov translate.Provider, doc string, prior *mapping.Document) string {
	if prior != nil && prior.SourceLanguage != "" && time.Since(prior.DetectedAt) < translate.DetectTTL {
		return prior.SourceLanguage
	}
	detector := translate.NewDetector(translate.NewClient(prov), settings.DetectCachePath())
	code, err := detector.Detect(ctx, doc)
	if err != nil {
		logWarning("language detection failed: %v", err)
		return ""
	}
	return code
}

// ---------------------------------------------------------------------------
// reverse command
// ---------------------------------------------------------------------------

func newReverseCmd() *cobra.Command {
	var (
		apiKey     string
		translated string
	)

	cmd := &cobra.Command{
		Use:   "reverse <source-file>",
		Short: "Translate hand edits in a translated document back to source",
		Long: `Detect paragraphs that were hand-edited in the translated document since
the last save, translate only those back into the source language, and
rewrite the source document.

Alignment is positional: inserting or removing a paragraph break in the
translated document shifts every following paragraph and marks the tail
modified.

Examples:
  rosetta-mark reverse README.md --target-lang fr`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := config.Load(rootDir, cmd.Flags())
			if err != nil {
				return err
			}
			if proj.TargetLang == "" {
				return fmt.Errorf("no target language (use --target-lang)")
			}
			return runReverse(args[0], proj, apiKey, translated)
		},
	}

	addEngineFlags(cmd)
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or ROSETTA_API_KEY env var)")
	cmd.Flags().StringVar(&translated, "translated", "", "Translated file (default: <name>.<lang>.<ext>)")
	return cmd
}

func runReverse(sourcePath string, proj *config.Project, apiKey, translated string) error {
	targetLang := langmeta.Resolve(proj.TargetLang)

	store := mapping.NewStore(rootDir)
	prior, err := store.Load(sourcePath, targetLang)
	if err != nil {
		return err
	}
	if prior == nil {
		return fmt.Errorf("no mapping for %s (%s): run `rosetta-mark translate` first", sourcePath, targetLang)
	}

	if translated == "" {
		translated = outputPath(sourcePath, targetLang)
	}
	data, err := os.ReadFile(translated)
	if err != nil {
		return fmt.Errorf("reading %s: %w", translated, err)
	}

	prov, err := buildProvider(proj, apiKey)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	events := make(chan engine.Event, 64)
	done := make(chan struct{})
	go watchProgress(events, done)

	eng := buildEngine(proj, prov, events)

	sourceLang := prior.SourceLanguage
	if sourceLang == "" {
		sourceLang = proj.SourceLang
	}
	if sourceLang == "" {
		return fmt.Errorf("unknown source language (set source_lang in rosetta.yaml)")
	}

	result, err := eng.ReconcileReverse(ctx, string(data), prior, sourceLang)
	close(events)
	<-done
	if err != nil {
		return err
	}

	if len(result.ModifiedIndices) == 0 {
		logInfo("%s", i18n.T("No edits detected"))
		return nil
	}

	if err := os.WriteFile(sourcePath, []byte(result.NewSource+"\n"), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", sourcePath, err)
	}
	if err := store.Save(sourcePath, targetLang, result.Mapping); err != nil {
		return err
	}

	logInfo("%s", fmt.Sprintf(
		i18n.N("translated %d paragraph", "translated %d paragraphs", len(result.ModifiedIndices)),
		len(result.ModifiedIndices)))
	logSuccess("%s: %s", i18n.T("Translation complete"), sourcePath)
	return nil
}

// ---------------------------------------------------------------------------
// status command
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <file>",
		Short: "Show cache statistics for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := config.Load(rootDir, cmd.Flags())
			if err != nil {
				return err
			}
			if proj.TargetLang == "" {
				return fmt.Errorf("no target language (use --target-lang)")
			}
			return runStatus(args[0], langmeta.Resolve(proj.TargetLang))
		},
	}
	cmd.Flags().String("target-lang", "", "Target language code")
	return cmd
}

func runStatus(path, targetLang string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	store := mapping.NewStore(rootDir)
	prior, err := store.Load(path, targetLang)
	if err != nil {
		return err
	}

	segs := segment.Split(string(data))
	plan := engine.BuildPlan(segs, prior)

	langName := langmeta.Name(targetLang)
	if langName == "" {
		langName = targetLang
	}

	fmt.Printf("%s → %s\n", path, langName)
	fmt.Printf("  segments:     %d\n", len(segs))
	fmt.Printf("  cached:       %d\n", plan.ReusedCount)
	fmt.Printf("  to translate: %d\n", plan.PendingCount)
	fmt.Printf("  est. tokens:  %d\n", engine.EstimateTokens(string(data)))
	if prior == nil {
		fmt.Println("  mapping:      none (first run will translate everything)")
	} else {
		fmt.Printf("  mapping:      %d paragraphs", len(prior.Paragraphs))
		if prior.SourceLanguage != "" {
			fmt.Printf(", source language %s", prior.SourceLanguage)
		}
		fmt.Println()
	}
	return nil
}

// ---------------------------------------------------------------------------
// detect command
// ---------------------------------------------------------------------------

func newDetectCmd() *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "detect <file>",
		Short: "Detect the language of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := config.Load(rootDir, cmd.Flags())
			if err != nil {
				return err
			}
			prov, err := buildProvider(proj, apiKey)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			ctx, stop := signalContext()
			defer stop()

			detector := translate.NewDetector(translate.NewClient(prov), settings.DetectCachePath())
			code, err := detector.Detect(ctx, string(data))
			if err != nil {
				return err
			}
			if name := langmeta.Name(code); name != "" {
				fmt.Printf("%s (%s)\n", code, name)
			} else {
				fmt.Println(code)
			}
			return nil
		},
	}

	cmd.Flags().String("provider", "", "AI provider")
	cmd.Flags().String("model", "", "Model name")
	cmd.Flags().String("base-url", "", "Custom API base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or ROSETTA_API_KEY env var)")
	return cmd
}

// ---------------------------------------------------------------------------
// auth command
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
	}

	set := &cobra.Command{
		Use:   "set <provider> <api-key>",
		Short: "Store an API key for a provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := translate.DefaultProviders()[args[0]]; !ok {
				return fmt.Errorf("unknown provider %q", args[0])
			}
			if err := settings.SetAPIKey(args[0], args[1]); err != nil {
				return err
			}
			logSuccess("stored key for %s in %s", args[0], settings.AuthFilePath())
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := settings.Load()
			if len(store) == 0 {
				fmt.Println("no stored credentials")
				return nil
			}
			for id, info := range store {
				line := fmt.Sprintf("%-15s %s", id, settings.MaskKey(info.Key))
				if info.BaseURL != "" {
					line += "  " + info.BaseURL
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <provider>",
		Short: "Delete stored credentials for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.Remove(args[0]); err != nil {
				return err
			}
			logSuccess("removed credentials for %s", args[0])
			return nil
		},
	}

	cmd.AddCommand(set, list, remove)
	return cmd
}

// ---------------------------------------------------------------------------
// version command
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rosetta-mark %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
