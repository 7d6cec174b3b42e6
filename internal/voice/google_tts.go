package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const googleTTSMaxRunes = 100

// GoogleTTS usa el endpoint translate_tts de Google Translate, el mismo que
// consume gTTS. Textos largos se envian en trozos y los MP3 se concatenan.
type GoogleTTS struct {
	baseURL string
	client  *http.Client
}

func NewGoogleTTS(baseURL string) *GoogleTTS {
	if baseURL == "" {
		baseURL = "https://translate.google.com"
	}
	return &GoogleTTS{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GoogleTTS) Synthesize(ctx context.Context, text, langCode string, w io.Writer) error {
	chunks := splitForTTS(text, googleTTSMaxRunes)
	if len(chunks) == 0 {
		return ErrEmptyText
	}
	for i, chunk := range chunks {
		if err := g.fetchChunk(ctx, chunk, langCode, i, len(chunks), w); err != nil {
			return fmt.Errorf("tts chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (g *GoogleTTS) fetchChunk(ctx context.Context, chunk, langCode string, idx, total int, w io.Writer) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", langCode)
	q.Set("q", chunk)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(len([]rune(chunk))))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko)")
	req.Header.Set("Referer", g.baseURL+"/")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tts http error: status=%d", resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	return nil
}
