package domain

// Nombres de idioma tal como los usa el frontend.
const (
	LanguageArabic   = "العربية"
	LanguageEnglish  = "English"
	LanguageHindi    = "हिंदी"
	LanguageFilipino = "Filipino"
)

var whisperToName = map[string]string{
	"ar":  LanguageArabic,
	"en":  LanguageEnglish,
	"hi":  LanguageHindi,
	"tl":  LanguageFilipino,
	"fil": LanguageFilipino,
}

var nameToCode = map[string]string{
	LanguageArabic:   "ar",
	LanguageEnglish:  "en",
	LanguageHindi:    "hi",
	LanguageFilipino: "tl",
}

// LanguageFromWhisper traduce el codigo detectado por Whisper al nombre del frontend.
// Codigos desconocidos caen en arabe.
func LanguageFromWhisper(code string) string {
	if name, ok := whisperToName[code]; ok {
		return name
	}
	return LanguageArabic
}

// LanguageCode devuelve el codigo TTS para un nombre de idioma, "ar" por defecto.
func LanguageCode(name string) string {
	if code, ok := nameToCode[name]; ok {
		return code
	}
	return "ar"
}

// HeaderLanguage devuelve un valor ASCII para el header X-Language.
// Nombres no mapeados se devuelven tal cual.
func HeaderLanguage(name string) string {
	if code, ok := nameToCode[name]; ok {
		return code
	}
	return name
}

// Transcript es el resultado de una transcripcion.
type Transcript struct {
	Text     string `json:"text"`
	Code     string `json:"code"`
	Language string `json:"language"`
}
