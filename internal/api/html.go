package api

import (
	"bytes"
	"html/template"
)

const pageStyle = `
        * { box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            padding: 1rem;
        }
        .container {
            text-align: center;
            background: white;
            padding: 2.5rem;
            border-radius: 12px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 480px;
            width: 100%;
        }
        h1 { color: #1f2937; font-size: 1.5rem; margin-bottom: 1rem; }
        p { color: #6b7280; line-height: 1.5; }
        code { background: #f3f4f6; padding: 0.2rem 0.4rem; border-radius: 4px; }
        .button {
            display: inline-block;
            margin-top: 1.5rem;
            padding: 0.75rem 1.5rem;
            border-radius: 8px;
            background: #6366f1;
            color: white;
            text-decoration: none;
            font-weight: 500;
        }
        .button.secondary { background: #e5e7eb; color: #374151; margin-left: 0.5rem; }
`

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - UserDesk</title>
    <style>` + pageStyle + `</style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
        {{if .Token}}<p>Access token: <code>{{.Token}}</code></p>{{end}}
        {{if .PrimaryHref}}<a class="button" href="{{.PrimaryHref}}">{{.PrimaryLabel}}</a>{{end}}
        {{if .SecondaryHref}}<a class="button secondary" href="{{.SecondaryHref}}">{{.SecondaryLabel}}</a>{{end}}
    </div>
</body>
</html>
`))

// Page is the data rendered by the console and the CLI callback pages.
type Page struct {
	Title          string
	Message        string
	Token          string
	PrimaryHref    string
	PrimaryLabel   string
	SecondaryHref  string
	SecondaryLabel string
}

// RenderPage renders p as a standalone HTML document.
func RenderPage(p Page) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoginSuccessPage is shown by the CLI callback server once the code has been exchanged.
func LoginSuccessPage() Page {
	return Page{
		Title:   "Authentication Successful",
		Message: "You are signed in. You can close this window and return to the terminal.",
	}
}

// LoginFailurePage is shown by the CLI callback server when the exchange failed.
func LoginFailurePage(message string) Page {
	return Page{
		Title:   "Authentication Failed",
		Message: message,
	}
}
