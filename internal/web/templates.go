package web

import (
    "bytes"
    "encoding/json"
    "html/template"

    "github.com/jaminalder/codex-arcade/internal/app"
    "github.com/jaminalder/codex-arcade/internal/domain"
    "github.com/jaminalder/codex-arcade/internal/guess"
    "github.com/jaminalder/codex-arcade/internal/memory"
)

type templates struct {
    index   *template.Template
    session *template.Template
}

func funcs() template.FuncMap {
    return template.FuncMap{
        "json": func(v any) (string, error) {
            b, err := json.MarshalIndent(v, "", "  ")
            return string(b), err
        },
    }
}

func loadTemplates() *templates {
    base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Arcade</title>
</head><body>{{template "content" .}}</body></html>`))
    index := template.Must(template.Must(base.Clone()).New("content").Parse(indexTemplate))
    session := template.Must(template.Must(base.Clone()).New("content").Parse(sessionTemplate))
    return &templates{index: index, session: session}
}

func renderTemplate(t *template.Template, data any) ([]byte, error) {
    var buf bytes.Buffer
    if err := t.Execute(&buf, data); err != nil {
        return nil, err
    }
    return buf.Bytes(), nil
}

type indexData struct {
    Kinds        []app.Kind
    Difficulties []domain.Difficulty
    Grids        []memory.Grid
    Ranges       []int
}

func newIndexData() indexData {
    return indexData{
        Kinds:        []app.Kind{app.KindTicTacToe, app.KindMemory, app.KindGuess},
        Difficulties: domain.Difficulties[:],
        Grids:        memory.Grids[:],
        Ranges:       guess.Ranges[:],
    }
}

const indexTemplate = `<h1>Arcade</h1>
{{range .Kinds}}
<form action="/sessions" method="post">
  <input type="hidden" name="kind" value="{{.}}">
  <button type="submit">Play {{.}}</button>
</form>
{{end}}
<p>Difficulties: {{range .Difficulties}}{{.}} {{end}}</p>
<p>Grids: {{range .Grids}}{{.}} {{end}}</p>
<p>Ranges: {{range .Ranges}}1-{{.}} {{end}}</p>`

const sessionTemplate = `<h1>{{.Kind}}</h1>
<pre id="state">{{json .State}}</pre>
<script>
const es = new EventSource("/sessions/{{.ID}}/events");
es.addEventListener("update", (e) => {
  const ev = JSON.parse(e.data);
  if (ev.type === "state") {
    document.getElementById("state").textContent = JSON.stringify(ev.state, null, 2);
  }
});
</script>`
