package middlewares

import "strings"

// CSPDirectives is the declarative allow-list the production
// Content-Security-Policy header is built from.
type CSPDirectives struct {
	DefaultSrc []string
	ScriptSrc  []string
	StyleSrc   []string
	ImgSrc     []string
	FontSrc    []string
	ConnectSrc []string
	FrameSrc   []string
}

// DefaultCSP returns the allow-list the web app ships with.
func DefaultCSP() CSPDirectives {
	return CSPDirectives{
		DefaultSrc: []string{"'self'"},
		ScriptSrc:  []string{"'self'", "'unsafe-inline'", "https://auth.privy.io"},
		StyleSrc:   []string{"'self'", "'unsafe-inline'", "https://fonts.googleapis.com"},
		ImgSrc:     []string{"'self'", "data:", "blob:", "https://res.cloudinary.com"},
		FontSrc:    []string{"'self'", "https://fonts.gstatic.com"},
		ConnectSrc: []string{"'self'", "https://auth.privy.io", "wss:"},
		FrameSrc:   []string{"'self'", "https://auth.privy.io"},
	}
}

// Header renders the directives into a header value, skipping empty ones.
func (d CSPDirectives) Header() string {
	var parts []string
	add := func(name string, sources []string) {
		if len(sources) > 0 {
			parts = append(parts, name+" "+strings.Join(sources, " "))
		}
	}
	add("default-src", d.DefaultSrc)
	add("script-src", d.ScriptSrc)
	add("style-src", d.StyleSrc)
	add("img-src", d.ImgSrc)
	add("font-src", d.FontSrc)
	add("connect-src", d.ConnectSrc)
	add("frame-src", d.FrameSrc)
	return strings.Join(parts, "; ")
}
