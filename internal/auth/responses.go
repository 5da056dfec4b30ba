// responses.go -- Package-wide HTTP response helpers.
//
// JSON helpers take fixed ASCII messages - no user-controlled input is
// interpolated, so string concat is safe here. The HTML error page goes
// through html/template.
package auth

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// InternalServerError logs the error and returns a generic 500 JSON response.
// Never exposes internal error details to prevent information leakage.
func InternalServerError(w http.ResponseWriter, r *http.Request, err error) {
	logError(r, "internal server error", "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"message":"internal server error"}`))
}

// BadRequest returns a 400 JSON response with the given message.
// Use for client input validation failures.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	w.Write([]byte(`{"message":"` + message + `"}`))
}

// NotFound returns a 404 JSON response.
func NotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"message":"not found"}`))
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorPageTmpl is shown to the browser when a login can't complete.
var errorPageTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign-in failed</title></head>
<body>
<h1>Something went wrong with authentication</h1>
<p>{{.Message}}</p>
{{if .RestartURL}}<p><a href="{{.RestartURL}}">Try signing in again</a></p>{{end}}
</body>
</html>
`))

// errorPage renders the login failure page. restartURL may be empty.
func errorPage(w http.ResponseWriter, r *http.Request, status int, message, restartURL string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := errorPageTmpl.Execute(w, struct {
		Message    string
		RestartURL string
	}{message, restartURL}); err != nil {
		logError(r, "rendering error page", "error", err)
	}
}
