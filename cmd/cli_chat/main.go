package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tabayyan/internal/config"
	"tabayyan/internal/llm"
	"tabayyan/internal/metrics"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "cli_chat",
	Short: "تبيّن desde la terminal",
	Long: `Herramienta de desarrollo para probar el asistente sin navegador.

Comandos:
  chat        conversacion interactiva o una sola pregunta
  transcribe  transcribe un archivo de audio con Whisper
  speak       sintetiza texto a MP3
  index-faqs  calcula embeddings de las FAQs pendientes`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "logs detallados")
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env agrupa lo que comparten los subcomandos.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func loadEnv() (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	if verbose {
		logger = zap.NewExample()
	}
	return &env{cfg: cfg, logger: logger, metrics: metrics.NewNopMetrics()}, nil
}

func (e *env) llmClient() *llm.HTTPClient {
	return llm.NewHTTPClient(e.cfg.LLMBaseURL, e.cfg.LLMAPIKey, e.cfg.LLMModel, e.cfg.LLMEmbeddingModel, zap.NewStdLog(e.logger))
}
