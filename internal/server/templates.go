package server

import "html/template"

var featuredCompanies = []string{"Servicetitan, Inc.", "Meta Platforms, Inc.", "Alphabet, Inc.", "Netflix, Inc."}

type homePage struct {
	Companies []string
	Count     int64
	Recent    []recentFiling
	LastRun   *runView
}

type recentFiling struct {
	CIK         string
	CompanyName string
	FilingDate  string
	FormType    string
	DocumentURL string
}

type runView struct {
	Status   string
	Source   string
	Started  string
	Finished string
	Loaded   int64
	Skipped  int
}

var pageTemplates = template.Must(template.New("layout").Parse(`{{define "header"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>S-1 Filings</title></head>
<body>
<h1><a href="/">S-1 Filings</a></h1>
<form action="/search" method="get">
  <label for="cik">CIK</label>
  <input id="cik" name="cik" maxlength="10" placeholder="320193">
  <button type="submit">Search</button>
</form>
{{end}}
{{define "footer"}}</body>
</html>{{end}}
{{define "home"}}{{template "header"}}
<h2>Featured companies</h2>
<ul>{{range .Companies}}<li><a href="/submissions?q={{.}}">{{.}}</a></li>{{end}}</ul>
<h2>Stored filings ({{.Count}})</h2>
{{if .Recent}}<table>
<tr><th>CIK</th><th>Company</th><th>Date</th><th>Form</th></tr>
{{range .Recent}}<tr><td>{{.CIK}}</td><td>{{.CompanyName}}</td><td>{{.FilingDate}}</td><td><a href="{{.DocumentURL}}">{{.FormType}}</a></td></tr>
{{end}}</table>{{else}}<p>No filings loaded yet.</p>{{end}}
{{with .LastRun}}<p>Last ingestion: {{.Status}} ({{.Source}}) started {{.Started}}{{if .Finished}}, finished {{.Finished}}{{end}}, {{.Loaded}} rows loaded, {{.Skipped}} documents skipped.</p>{{end}}
<h2>Upload filings CSV</h2>
<form action="/upload" method="post" enctype="multipart/form-data">
  <input type="file" name="file" accept=".csv">
  <button type="submit">Upload</button>
</form>
<form action="/ingest" method="post"><button type="submit">Run ingestion now</button></form>
{{template "footer"}}{{end}}
{{define "search"}}{{template "header"}}
{{if .Found}}
<h2>{{.CompanyName}}</h2>
<p>Latest {{.Filing.FormType}} filed {{.Filing.FilingDate}} (accession {{.Filing.AccessionNumber}})</p>
<p><a href="{{.DocumentURL}}">Open the filing document</a> | <a href="/summary/{{.CIK}}">Summarize</a></p>
{{else}}
<p>{{.Message}}</p>
{{end}}
<p><a href="{{.FallbackURL}}">Search EDGAR for {{.CIK}}</a></p>
{{template "footer"}}{{end}}`))
