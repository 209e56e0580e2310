// Package views は画面テンプレートと静的ファイルを埋め込んで提供します。
package views

import (
	"embed"
	"html/template"
	"io/fs"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Parse は全テンプレートを読み込みます。各ページはファイル名で参照します（例: "login.html"）。
func Parse() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"timefmt": func(t time.Time) string {
			return t.Local().Format("2006-01-02 15:04")
		},
	}).ParseFS(templateFS, "templates/*.html")
}

// MustParse は Parse に失敗した場合 panic します。
func MustParse() *template.Template {
	tmpl, err := Parse()
	if err != nil {
		panic(err)
	}
	return tmpl
}

// Static は /public で配信する静的ファイルを返します。
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
