package cswebui

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the customer service pages. They are
// split into a layout, the home page, and the partials re-rendered after every session mutation.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded stylesheet and script served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
