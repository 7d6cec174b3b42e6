package voice

import (
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Duration decodifica las cabeceras del MP3 y estima su duracion.
// go-mp3 entrega PCM estereo de 16 bits: 4 bytes por muestra.
func MP3Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	length := dec.Length()
	if length <= 0 || dec.SampleRate() <= 0 {
		return 0, fmt.Errorf("mp3 length unknown")
	}
	samples := length / 4
	return time.Duration(samples) * time.Second / time.Duration(dec.SampleRate()), nil
}
