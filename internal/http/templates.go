package http

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// LoadTemplates compila las paginas HTML embebidas.
func LoadTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"flashClass": flashClass,
	}).ParseFS(templateFS, "templates/*.html")
}

func staticFileSystem() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

func flashClass(category string) string {
	switch category {
	case "success":
		return "flash flash-success"
	case "error":
		return "flash flash-error"
	default:
		return "flash flash-info"
	}
}

// render agrega identidad y mensajes flash a los datos de la plantilla.
func render(c *gin.Context, sessions *SessionManager, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if sessions != nil {
		data["flashes"] = sessions.PopFlashes(c)
	}
	if claims, ok := CurrentIdentity(c); ok {
		data["identity"] = claims
	}
	c.HTML(status, name, data)
}
