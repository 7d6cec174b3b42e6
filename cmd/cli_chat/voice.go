package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tabayyan/internal/db"
	"tabayyan/internal/domain"
	"tabayyan/internal/repository"
	"tabayyan/internal/service"
	"tabayyan/internal/voice"
)

var (
	speakLanguage string
	speakOutput   string
	speakSpeed    float64
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <archivo>",
	Short: "Transcribe un audio (webm, wav, mp3, m4a, ogg)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

var speakCmd = &cobra.Command{
	Use:   "speak <texto>",
	Short: "Sintetiza texto a MP3",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSpeak,
}

var indexFAQsCmd = &cobra.Command{
	Use:   "index-faqs",
	Short: "Calcula embeddings de FAQs sin indexar",
	RunE:  runIndexFAQs,
}

func init() {
	rootCmd.AddCommand(transcribeCmd, speakCmd, indexFAQsCmd)
	speakCmd.Flags().StringVarP(&speakLanguage, "lang", "l", domain.LanguageArabic, "idioma (العربية, English, हिंदी, Filipino)")
	speakCmd.Flags().StringVarP(&speakOutput, "out", "o", "response.mp3", "archivo de salida")
	speakCmd.Flags().Float64Var(&speakSpeed, "speed", 0, "factor de velocidad (0 = SPEED_FACTOR)")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	svc, err := voice.NewServiceFromConfig(e.cfg, e.metrics, e.logger)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	job := svc.NewJob()
	defer svc.Cleanup(job)

	path, err := svc.SaveUpload(job, f, filepath.Base(args[0]))
	if err != nil {
		return err
	}
	transcript, err := svc.Transcribe(context.Background(), job, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", transcript.Language, transcript.Text)
	return nil
}

func runSpeak(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	svc, err := voice.NewServiceFromConfig(e.cfg, e.metrics, e.logger)
	if err != nil {
		return err
	}
	speed := speakSpeed
	if speed <= 0 {
		speed = e.cfg.SpeedFactor
	}

	job := svc.NewJob()
	defer svc.Cleanup(job)

	speech, err := svc.GenerateSpeech(context.Background(), job, strings.Join(args, " "), speakLanguage, speed)
	if err != nil {
		return err
	}
	if err := copyFile(speech.Path, speakOutput); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%.1fs, sped up: %t)\n", speakOutput, speech.Duration.Seconds(), speech.SpedUp)
	return nil
}

func runIndexFAQs(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, e.cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	faqSvc := service.NewFAQService(repository.NewPgFAQRepository(pool), e.llmClient(), e.logger)
	n, err := faqSvc.IndexMissing(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d faqs\n", n)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
