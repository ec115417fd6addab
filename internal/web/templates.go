// Package web はHTMLページの描画を提供します。
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates は埋め込みテンプレートをパースして返します。
// gin の SetHTMLTemplate にそのまま渡せます。
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}
