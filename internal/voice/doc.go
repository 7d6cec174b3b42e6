// Package voice implementa el pipeline de voz: guarda el audio subido,
// lo normaliza con ffmpeg, lo transcribe con un modelo Whisper y sintetiza
// la respuesta con un servicio TTS externo, ajustando la velocidad con ffmpeg.
//
// Ningun paso reimplementa reconocimiento, sintesis o transcodificacion:
// todos delegan en binarios o APIs externas.
package voice
