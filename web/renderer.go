package web

import (
	"bytes"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
)

// Vals is a convenience type for passing data to templates.
type Vals map[string]any

// Renderer executes HTML templates loaded from an fs.FS. Templates are
// parsed on first use and named by their path with the extension
// removed, so "pages/login.html" becomes "pages/login".
//
// Usage:
//
//	//go:embed templates
//	var templates embed.FS
//
//	sub, _ := fs.Sub(templates, "templates")
//	renderer := web.NewRenderer(sub, ".html")
//	renderer.HTML(w, http.StatusOK, "login", web.Vals{"SessionID": sess.IDHex()})
type Renderer struct {
	fsys  fs.FS
	ext   string
	funcs template.FuncMap

	once      sync.Once
	templates *template.Template
	err       error
}

var buffers = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

// NewRenderer creates a Renderer over files in fsys ending in ext.
func NewRenderer(fsys fs.FS, ext string) *Renderer {
	return &Renderer{
		fsys:  fsys,
		ext:   ext,
		funcs: template.FuncMap{},
	}
}

// Funcs registers template functions. It must be called before the
// first render.
func (v *Renderer) Funcs(funcs template.FuncMap) *Renderer {
	for n, f := range funcs {
		v.funcs[n] = f
	}
	return v
}

// HTML renders the named template and writes it with status. Nothing is
// written when rendering fails.
func (v *Renderer) HTML(w http.ResponseWriter, status int, name string, data any) error {
	buf := buffers.Get().(*bytes.Buffer)
	buf.Reset()
	defer buffers.Put(buf)

	if err := v.Render(buf, name, data); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// Render executes the named template into w.
func (v *Renderer) Render(w io.Writer, name string, data any) error {
	v.once.Do(v.load)
	if v.err != nil {
		return v.err
	}
	return v.templates.ExecuteTemplate(w, name, data)
}

func (v *Renderer) load() {
	v.templates = template.New("").Funcs(v.funcs)
	v.err = fs.WalkDir(v.fsys, ".", func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() || path.Ext(p) != v.ext {
			return nil
		}

		buf, err := fs.ReadFile(v.fsys, p)
		if err != nil {
			return err
		}

		_, err = v.templates.New(strings.TrimSuffix(p, v.ext)).Parse(string(buf))
		return err
	})
}
