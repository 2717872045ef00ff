package frame

import (
	"html/template"
	"io"
	"net/url"
	"strings"
)

const pageSource = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta property="og:title" content="{{.Title}}">
<meta property="og:image" content="{{.Image}}">
<meta property="fc:frame" content="vNext">
<meta property="fc:frame:image" content="{{.Image}}">
<meta property="fc:frame:image:aspect_ratio" content="1.91:1">
<meta property="fc:frame:post_url" content="{{.PostURL}}">
{{- range $i, $b := .Buttons}}
<meta property="fc:frame:button:{{inc $i}}" content="{{$b.Label}}">
<meta property="fc:frame:button:{{inc $i}}:action" content="post">
<meta property="fc:frame:button:{{inc $i}}:target" content="{{$b.Target}}">
{{- end}}
</head>
<body><img src="{{.Image}}" alt="{{.Title}}" width="600"></body>
</html>
`

var page = template.Must(template.New("frame").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(pageSource))

type pageData struct {
	Title   string
	Image   string
	PostURL string
	Buttons []Button
}

// writePage renders f as frame HTML. Targets are made absolute against the
// public URL so frame clients can post back.
func (c *Controller) writePage(w io.Writer, f Frame) error {
	img := f.ImageURL
	if img == "" {
		enc, err := c.Cards.Encode(f.Card)
		if err != nil {
			if enc, err = c.Cards.Encode(renderErrorCard(err)); err != nil {
				return err
			}
		}
		img = c.absolute(c.base()+"/image") + "?c=" + url.QueryEscape(enc)
	}
	d := pageData{Title: c.Settings.Title, Image: img}
	for _, b := range f.Buttons {
		d.Buttons = append(d.Buttons, Button{Label: b.Label, Target: c.absolute(b.Target)})
	}
	if len(d.Buttons) > 0 {
		d.PostURL = d.Buttons[0].Target
	}
	return page.Execute(w, d)
}

func (c *Controller) absolute(path string) string {
	return strings.TrimRight(c.Settings.PublicURL, "/") + path
}
