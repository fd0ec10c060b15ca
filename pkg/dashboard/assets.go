package dashboard

import (
	"embed"
	"io/fs"
)

// static holds the embedded single-page UI served next to the JSON endpoints.
//
//go:embed static/*
var static embed.FS

func staticFS() (fs.FS, error) {
	return fs.Sub(static, "static")
}
