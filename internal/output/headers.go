package output

import (
	"fmt"
	"io"
	"net/http"
	"sort"
)

// PrintHeaders writes the status line and the response headers sorted by name,
// one "Name: value" line per value.
func PrintHeaders(w io.Writer, code int, header http.Header) {
	status := fmt.Sprintf("%d %s", code, http.StatusText(code))
	switch {
	case code >= 400 || code == 0:
		fmt.Fprintln(w, errorStyle.Render(status))
	case code >= 300:
		fmt.Fprintln(w, warningStyle.Render(status))
	default:
		fmt.Fprintln(w, successStyle.Render(status))
	}
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range header[name] {
			fmt.Fprintf(w, "%s: %s\n", FHeader(name), FDebug(value))
		}
	}
}
