package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flashnotes-backend/internal/config"
	"flashnotes-backend/internal/flashcards"
	"flashnotes-backend/internal/logger"
	"flashnotes-backend/internal/models"
	"flashnotes-backend/internal/services"
)

const defaultHFURL = "https://api-inference.huggingface.co/models/google/flan-t5-base"

type generateOptions struct {
	maxCards    int
	provider    string
	hfURL       string
	timeout     time.Duration
	concurrency int
	verbose     bool
}

func generateCmd() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [file]",
		Short: "Generate flashcards from a notes file or stdin",
		Long: `Generate flashcards from notes and print them as JSON.

Nothing is stored. Reads stdin when no file is given.

Examples:
  flashgen generate lecture.txt --max 5
  flashgen generate slides.pdf --provider huggingface
  cat notes.md | flashgen generate`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			godotenv.Load()

			notes, err := readNotes(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), notes, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.maxCards, "max", "n", flashcards.DefaultMaxCards, "maximum number of cards")
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", config.ProviderOffline, "question provider (offline, huggingface)")
	cmd.Flags().StringVar(&opts.hfURL, "hf-url", "", "Hugging Face model endpoint (defaults to HF_API_URL)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", flashcards.DefaultGenerationTimeout, "per-question generation timeout")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 1, "parallel generation calls")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	return cmd
}

func readNotes(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	path := args[0]
	if services.SupportedNoteFile(path) {
		return services.NewNoteExtractor(0).ExtractFromPath(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func runGenerate(ctx context.Context, out io.Writer, notes string, opts *generateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log := zap.NewNop()
	if opts.verbose {
		l, err := logger.New("development", "debug")
		if err != nil {
			return err
		}
		log = l
		defer log.Sync()
	}

	var generator flashcards.Generator
	switch opts.provider {
	case config.ProviderOffline:
	case config.ProviderHuggingFace:
		token := os.Getenv("HUGGING_FACE_TOKEN")
		if token == "" {
			return fmt.Errorf("HUGGING_FACE_TOKEN is required for --provider %s", config.ProviderHuggingFace)
		}
		url := opts.hfURL
		if url == "" {
			url = os.Getenv("HF_API_URL")
		}
		if url == "" {
			url = defaultHFURL
		}
		generator = services.NewBreakerGenerator(
			services.NewHuggingFaceClient(url, token, opts.timeout),
			services.DefaultBreakerConfig("huggingface"),
			log, nil,
		)
	default:
		return fmt.Errorf("unknown provider %q", opts.provider)
	}

	synth := flashcards.NewSynthesizer(generator, opts.timeout, log, nil)
	pipeline := flashcards.NewPipeline(synth, nil, flashcards.PipelineConfig{
		MaxCards:    opts.maxCards,
		Concurrency: opts.concurrency,
	}, log, nil)

	cards, err := pipeline.Preview(ctx, notes, opts.maxCards)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(models.FlashcardsResponse{Flashcards: cards})
}
